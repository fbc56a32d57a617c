package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/andresuchdata/linksync/internal/cache"
	"github.com/andresuchdata/linksync/internal/config"
	"github.com/andresuchdata/linksync/internal/domain"
	"github.com/andresuchdata/linksync/internal/repository"
	"github.com/andresuchdata/linksync/internal/storage"
	"github.com/andresuchdata/linksync/internal/syncer"
	"github.com/andresuchdata/linksync/internal/table"
)

var (
	// ErrInvalidRequest is returned by Start for a request missing input or root.
	ErrInvalidRequest = errors.New("input_path and root are required")
	// ErrRunNotDone is returned when links of an unfinished run are exported.
	ErrRunNotDone = errors.New("sync run has not completed")
	// ErrRunNotFound aliases the repository error for handlers.
	ErrRunNotFound = repository.ErrRunNotFound
)

// Runner executes one sync run.
type Runner interface {
	SyncAndCollectLinks(ctx context.Context, inputPath string) (table.LongTable, error)
}

// RunnerFactory opens a runner for req. The root collision check happens
// here, so a taken root fails the run before anything is uploaded.
type RunnerFactory func(ctx context.Context, req domain.SyncRequest, observer syncer.Observer) (Runner, error)

// NewSyncerFactory opens storage backends from cfg, one per run.
func NewSyncerFactory(cfg config.StorageConfig, fetch config.FetchConfig) RunnerFactory {
	return func(ctx context.Context, req domain.SyncRequest, observer syncer.Observer) (Runner, error) {
		backend, err := storage.NewBackend(ctx, cfg, req.Credential)
		if err != nil {
			return nil, domain.NewError(domain.KindTransport, "connect", "failed to open remote store", err)
		}
		return syncer.Open(ctx, backend, req.Root, syncer.Options{Observer: observer, Fetch: fetch})
	}
}

// SyncService registers sync runs, executes each on its own goroutine and
// persists their state and links.
type SyncService struct {
	repo      repository.RunRepository
	cache     cache.RunCache
	newRunner RunnerFactory
	now       func() time.Time

	mu    sync.Mutex
	roots map[string]*semaphore.Weighted
	wg    sync.WaitGroup
}

func NewSyncService(repo repository.RunRepository, cacheImpl cache.RunCache, factory RunnerFactory) *SyncService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopRunCache()
	}
	return &SyncService{
		repo:      repo,
		cache:     cacheImpl,
		newRunner: factory,
		now:       time.Now,
		roots:     make(map[string]*semaphore.Weighted),
	}
}

// Start records a new run and executes it in the background. Runs on the same
// root execute one after another.
func (s *SyncService) Start(ctx context.Context, req domain.SyncRequest) (*domain.SyncRun, error) {
	req.InputPath = strings.TrimSpace(req.InputPath)
	req.Root = strings.TrimSpace(req.Root)
	if req.InputPath == "" || req.Root == "" {
		return nil, ErrInvalidRequest
	}

	run := &domain.SyncRun{
		ID:        uuid.NewString(),
		Root:      req.Root,
		InputPath: req.InputPath,
		Status:    domain.StateIdle,
		StartedAt: s.now().UTC(),
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record sync run: %w", err)
	}
	s.invalidate(ctx, run.ID)

	log.Info().Str("run_id", run.ID).Str("root", run.Root).Str("input", run.InputPath).Msg("sync run queued")

	snapshot := *run
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(context.WithoutCancel(ctx), run, req)
	}()

	return &snapshot, nil
}

func (s *SyncService) execute(ctx context.Context, run *domain.SyncRun, req domain.SyncRequest) {
	lock := s.rootLock(run.Root)
	if err := lock.Acquire(ctx, 1); err != nil {
		s.fail(ctx, run, err)
		return
	}
	defer lock.Release(1)

	observer := &runObserver{service: s, ctx: ctx, run: run}
	runner, err := s.newRunner(ctx, req, observer)
	if err != nil {
		s.fail(ctx, run, err)
		return
	}

	links, err := runner.SyncAndCollectLinks(ctx, req.InputPath)
	if err != nil {
		s.fail(ctx, run, err)
		return
	}

	stored := make([]domain.RunLink, len(links))
	for i, row := range links {
		stored[i] = domain.RunLink{RunID: run.ID, Position: i, Name: row.Name, URL: row.URL}
	}
	if err := s.repo.SaveLinks(ctx, run.ID, stored); err != nil {
		s.fail(ctx, run, err)
		return
	}

	completed := s.now().UTC()
	run.Status = domain.StateDone
	run.LinkCount = len(links)
	run.CompletedAt = &completed
	s.save(ctx, run)

	log.Info().
		Str("run_id", run.ID).
		Int("links", run.LinkCount).
		Dur("elapsed", run.Elapsed(completed)).
		Msg("sync run completed")
}

func (s *SyncService) fail(ctx context.Context, run *domain.SyncRun, err error) {
	completed := s.now().UTC()
	run.Status = domain.StateFailed
	run.ErrorKind = domain.KindOf(err)
	run.ErrorMessage = err.Error()
	run.CompletedAt = &completed
	s.save(ctx, run)

	log.Error().Err(err).Str("run_id", run.ID).Str("kind", string(run.ErrorKind)).Msg("sync run failed")
}

func (s *SyncService) save(ctx context.Context, run *domain.SyncRun) {
	if err := s.repo.UpdateRun(ctx, run); err != nil {
		log.Error().Err(err).Str("run_id", run.ID).Msg("failed to persist sync run")
	}
	s.invalidate(ctx, run.ID)
}

func (s *SyncService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		log.Warn().Err(err).Str("run_id", id).Msg("sync: cache invalidate failed")
	}
}

func (s *SyncService) rootLock(root string) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.roots[root]
	if !ok {
		lock = semaphore.NewWeighted(1)
		s.roots[root] = lock
	}
	return lock
}

// Get returns a run by id.
func (s *SyncService) Get(ctx context.Context, id string) (*domain.SyncRun, error) {
	if run, ok, err := s.cache.GetRun(ctx, id); err == nil && ok {
		return run, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("sync: cache get run failed")
	}

	run, err := s.repo.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	// A running entry could be written back after the run invalidated it.
	if !run.Status.Terminal() {
		return run, nil
	}
	if err := s.cache.SetRun(ctx, run); err != nil {
		log.Warn().Err(err).Msg("sync: cache set run failed")
	}
	return run, nil
}

// List returns the most recent runs first.
func (s *SyncService) List(ctx context.Context, limit int) ([]*domain.SyncRun, error) {
	if runs, ok, err := s.cache.GetRunList(ctx, limit); err == nil && ok {
		return runs, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("sync: cache get run list failed")
	}

	runs, err := s.repo.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = make([]*domain.SyncRun, 0)
	}

	for _, run := range runs {
		if !run.Status.Terminal() {
			return runs, nil
		}
	}
	if err := s.cache.SetRunList(ctx, limit, runs); err != nil {
		log.Warn().Err(err).Msg("sync: cache set run list failed")
	}
	return runs, nil
}

// Links returns the (name, link) rows of a completed run.
func (s *SyncService) Links(ctx context.Context, id string) (table.LongTable, error) {
	run, err := s.repo.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status != domain.StateDone {
		return nil, ErrRunNotDone
	}

	stored, err := s.repo.GetLinks(ctx, id)
	if err != nil {
		return nil, err
	}

	links := make(table.LongTable, len(stored))
	for i, link := range stored {
		links[i] = table.LongRow{Name: link.Name, URL: link.URL}
	}
	return links, nil
}

// ExportXLSX writes the run's links as a wide workbook to w.
func (s *SyncService) ExportXLSX(ctx context.Context, id string, w io.Writer) error {
	links, err := s.Links(ctx, id)
	if err != nil {
		return err
	}
	return table.WriteXLSX(w, table.ToWide(links).Sheet())
}

// Wait blocks until every started run has finished.
func (s *SyncService) Wait() {
	s.wg.Wait()
}

// runObserver writes each state transition of a run through to storage.
type runObserver struct {
	service *SyncService
	ctx     context.Context
	run     *domain.SyncRun
}

func (o *runObserver) OnState(state domain.State) {
	// Terminal states are recorded by execute together with links and errors.
	if state.Terminal() {
		return
	}
	o.run.Status = state
	o.service.save(o.ctx, o.run)
}

func (o *runObserver) OnProgress(state domain.State, done, total int, name string) {
	log.Debug().
		Str("run_id", o.run.ID).
		Str("state", string(state)).
		Int("done", done).
		Int("total", total).
		Str("file", name).
		Msg("sync progress")
}
