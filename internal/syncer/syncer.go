// Package syncer drives one sync run: stage, upload, list and mint links.
package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/linksync/internal/config"
	"github.com/andresuchdata/linksync/internal/domain"
	"github.com/andresuchdata/linksync/internal/metrics"
	"github.com/andresuchdata/linksync/internal/stage"
	"github.com/andresuchdata/linksync/internal/storage"
	"github.com/andresuchdata/linksync/internal/table"
	"github.com/andresuchdata/linksync/pkg/logger"
)

// Observer receives state transitions and per-item progress of a run.
// Callbacks run on the run's goroutine.
type Observer interface {
	OnState(state domain.State)
	OnProgress(state domain.State, done, total int, name string)
}

// Options tunes a Syncer. Zero values are usable.
type Options struct {
	// ValidURL filters spreadsheet rows before staging. Defaults to
	// table.IsHTTPURL.
	ValidURL func(string) bool
	Observer Observer
	Fetch    config.FetchConfig
}

// Syncer runs the workflow against one remote root.
type Syncer struct {
	store    *storage.Store
	stager   *stage.Stager
	validURL func(string) bool
	observer Observer

	mu    sync.Mutex
	state domain.State
}

// Open binds a store to root, failing with RootAlreadyExists when root is
// taken, and returns a Syncer for it.
func Open(ctx context.Context, backend storage.Backend, root string, opts Options) (*Syncer, error) {
	store, err := storage.Open(ctx, backend, root)
	if err != nil {
		return nil, err
	}
	return New(store, stage.New(opts.Fetch), opts), nil
}

// New assembles a Syncer from its parts.
func New(store *storage.Store, stager *stage.Stager, opts Options) *Syncer {
	s := &Syncer{
		store:    store,
		stager:   stager,
		validURL: opts.ValidURL,
		observer: opts.Observer,
		state:    domain.StateIdle,
	}
	if s.validURL == nil {
		s.validURL = table.IsHTTPURL
	}

	store.OnProgress(func(done, total int, name string) {
		s.progress(domain.StateUploading, done, total, name)
	})
	stager.OnProgress(func(done, total int, name string) {
		s.progress(domain.StateStaging, done, total, name)
	})
	return s
}

// State returns the current state of the run.
func (s *Syncer) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Root returns the remote root the run writes to.
func (s *Syncer) Root() string {
	return s.store.Root()
}

// SyncAndCollectLinks uploads inputPath to the root and returns one
// (name, link) row per image in the root. inputPath is a directory when it has
// no extension and a .xlsx or .csv link sheet otherwise.
func (s *Syncer) SyncAndCollectLinks(ctx context.Context, inputPath string) (table.LongTable, error) {
	started := time.Now()

	links, err := s.run(ctx, inputPath)
	if err != nil {
		s.transition(domain.StateFailed)
		metrics.RecordSyncRun(string(domain.StateFailed), time.Since(started))
		logger.Log.Error().Err(err).Str("root", s.store.Root()).Str("input", inputPath).Msg("sync failed")
		return nil, err
	}

	s.transition(domain.StateDone)
	metrics.RecordSyncRun(string(domain.StateDone), time.Since(started))
	logger.Log.Info().
		Str("root", s.store.Root()).
		Int("links", len(links)).
		Dur("elapsed", time.Since(started)).
		Msg("sync finished")
	return links, nil
}

func (s *Syncer) run(ctx context.Context, inputPath string) (table.LongTable, error) {
	if _, err := os.Stat(inputPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.Errorf(domain.KindPathNotFound, "sync", "%s does not exist on your filesystem", inputPath)
		}
		return nil, domain.NewError(domain.KindIO, "sync", "failed to stat "+inputPath, err)
	}

	folder := inputPath
	if ext := filepath.Ext(inputPath); ext != "" {
		staged, err := s.stageSheet(ctx, inputPath, ext)
		if err != nil {
			return nil, err
		}
		folder = staged
	}

	s.transition(domain.StateUploading)
	if _, err := s.store.UploadAll(ctx, folder); err != nil {
		return nil, err
	}

	s.transition(domain.StateListing)
	items, err := s.store.ListImages(ctx)
	if err != nil {
		return nil, err
	}

	s.transition(domain.StateLinkMinting)
	return s.mintLinks(ctx, items)
}

// stageSheet fetches the sheet's links into the sibling folder named after
// the sheet and returns that folder.
func (s *Syncer) stageSheet(ctx context.Context, sheetPath, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".xlsx", ".csv":
	default:
		return "", domain.Errorf(domain.KindUnsupportedFormat, "sync", "unsupported file format %q, use .xlsx or .csv", ext)
	}

	s.transition(domain.StateStaging)
	long, err := table.LoadLong(sheetPath)
	if err != nil {
		return "", err
	}

	kept, dropped := table.FilterURLs(long, s.validURL)
	for _, row := range dropped {
		logger.Log.Warn().Str("name", row.Name).Str("url", row.URL).Msg("skipping invalid url")
	}

	folder := strings.TrimSuffix(sheetPath, ext)
	if _, err := s.stager.Stage(ctx, kept, folder); err != nil {
		return "", err
	}
	return folder, nil
}

func (s *Syncer) mintLinks(ctx context.Context, items []storage.Item) (table.LongTable, error) {
	links := make(table.LongTable, 0, len(items))
	for i, item := range items {
		base, ext := storage.SplitName(item.Name)
		if !storage.IsImage(item.Name) {
			logger.Log.Debug().Str("file", item.Name).Str("ext", ext).Msg("skipping non-image")
			continue
		}

		link, err := s.store.MintLink(ctx, item)
		if err != nil {
			return nil, err
		}
		links = append(links, table.LongRow{Name: base, URL: link})
		s.progress(domain.StateLinkMinting, i+1, len(items), item.Name)
	}
	return links, nil
}

func (s *Syncer) transition(state domain.State) {
	s.mu.Lock()
	from := s.state
	s.state = state
	s.mu.Unlock()

	logger.Log.Debug().Str("from", string(from)).Str("to", string(state)).Msg("state transition")
	if s.observer != nil {
		s.observer.OnState(state)
	}
}

func (s *Syncer) progress(state domain.State, done, total int, name string) {
	if s.observer != nil {
		s.observer.OnProgress(state, done, total, name)
	}
}
