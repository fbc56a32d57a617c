package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/linksync/internal/domain"
	"github.com/andresuchdata/linksync/internal/metrics"
	"github.com/andresuchdata/linksync/pkg/logger"
)

// ProgressFunc is called after each file of a batch transfer.
type ProgressFunc func(done, total int, name string)

// Store confines every transfer to one remote root folder.
type Store struct {
	backend  Backend
	root     string
	progress ProgressFunc
}

// Open binds a Store to a new root folder. It fails with RootAlreadyExists,
// creating nothing, when an entry named root already sits at the top level.
func Open(ctx context.Context, backend Backend, root string) (*Store, error) {
	if err := validateRoot(root); err != nil {
		return nil, err
	}

	entries, err := backend.ListTopLevel(ctx)
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, "open", "failed to list top-level entries", err)
	}
	for _, name := range entries {
		if name == root {
			return nil, domain.Errorf(domain.KindRootAlreadyExists, "open",
				"%s already exists in the remote store, please choose another name", root)
		}
	}

	if err := backend.Stat(ctx, root); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, domain.NewError(domain.KindTransport, "open", "failed to check "+root, err)
		}
		logger.Log.Info().Str("root", root).Msg("root folder not found, it will be created")
	}
	if err := backend.EnsureFolder(ctx, root); err != nil {
		return nil, domain.NewError(domain.KindTransport, "open", "failed to create "+root, err)
	}

	return &Store{backend: backend, root: root}, nil
}

// OpenExisting binds a Store to a root folder that must already exist. It is
// used to pull a previous run's files back down.
func OpenExisting(ctx context.Context, backend Backend, root string) (*Store, error) {
	if err := validateRoot(root); err != nil {
		return nil, err
	}
	if err := backend.Stat(ctx, root); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, domain.Errorf(domain.KindFolderNotFound, "open existing", "%s does not exist in the remote store", root)
		}
		return nil, domain.NewError(domain.KindTransport, "open existing", "failed to check "+root, err)
	}
	return &Store{backend: backend, root: root}, nil
}

func validateRoot(root string) error {
	if strings.TrimSpace(root) == "" {
		return domain.Errorf(domain.KindFolderNotFound, "open", "root folder name must be provided")
	}
	if strings.ContainsAny(root, `/\`) || root == "." || root == ".." {
		return domain.Errorf(domain.KindFolderNotFound, "open", "root folder name %q must be a single path element", root)
	}
	return nil
}

// Root returns the root folder name.
func (s *Store) Root() string {
	return s.root
}

// OnProgress registers fn for UploadAll and DownloadAll.
func (s *Store) OnProgress(fn ProgressFunc) {
	s.progress = fn
}

// UploadOne reads localPath fully and writes it as root/basename, overwriting.
func (s *Store) UploadOne(ctx context.Context, localPath string) (Item, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return Item{}, domain.NewError(domain.KindIO, "upload", "failed to read "+localPath, err)
	}

	name := filepath.Base(localPath)
	item, err := s.backend.Put(ctx, s.root, name, data)
	if err != nil {
		metrics.RecordUpload(false, 0)
		return Item{}, domain.NewError(domain.KindTransport, "upload", "failed to upload "+name, err)
	}
	metrics.RecordUpload(true, int64(len(data)))

	logger.Log.Info().Str("file", name).Str("root", s.root).Msg("uploaded")
	return item, nil
}

// UploadAll uploads every file directly inside localFolder, in directory
// listing order. Sub-directories are skipped. The first failure aborts the
// batch.
func (s *Store) UploadAll(ctx context.Context, localFolder string) (int, error) {
	info, err := os.Stat(localFolder)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, domain.Errorf(domain.KindFolderNotFound, "upload all", "%s does not exist on your filesystem", localFolder)
		}
		return 0, domain.NewError(domain.KindIO, "upload all", "failed to stat "+localFolder, err)
	}
	if !info.IsDir() {
		return 0, domain.Errorf(domain.KindFolderNotFound, "upload all", "%s is not a directory", localFolder)
	}

	entries, err := os.ReadDir(localFolder)
	if err != nil {
		return 0, domain.NewError(domain.KindIO, "upload all", "failed to list "+localFolder, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			logger.Log.Debug().Str("dir", entry.Name()).Msg("skipping sub-directory")
			continue
		}
		files = append(files, entry.Name())
	}

	logger.Log.Info().Str("folder", localFolder).Int("files", len(files)).Msg("start uploading")
	count := 0
	for _, name := range files {
		if _, err := s.UploadOne(ctx, filepath.Join(localFolder, name)); err != nil {
			return count, err
		}
		count++
		s.report(count, len(files), name)
	}
	logger.Log.Info().Str("folder", localFolder).Int("uploaded", count).Msg("finished uploading")

	return count, nil
}

// DownloadOne fetches root/basename(localPath) into localPath.
func (s *Store) DownloadOne(ctx context.Context, localPath string) error {
	name := filepath.Base(localPath)
	data, err := s.backend.Get(ctx, s.root, name)
	if err != nil {
		return domain.NewError(domain.KindTransport, "download", "failed to download "+name, err)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return domain.NewError(domain.KindIO, "download", "failed creating directory for "+localPath, err)
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return domain.NewError(domain.KindIO, "download", "failed writing "+localPath, err)
	}

	logger.Log.Info().Str("file", name).Str("root", s.root).Msg("downloaded")
	return nil
}

// DownloadAll downloads every item directly under the root into localFolder,
// creating it if needed.
func (s *Store) DownloadAll(ctx context.Context, localFolder string) (int, error) {
	if err := os.MkdirAll(localFolder, 0o755); err != nil {
		return 0, domain.NewError(domain.KindIO, "download all", "failed to create "+localFolder, err)
	}

	items, err := s.backend.List(ctx, s.root)
	if err != nil {
		return 0, domain.NewError(domain.KindTransport, "download all", "failed to list "+s.root, err)
	}

	logger.Log.Info().Str("root", s.root).Int("files", len(items)).Msg("start downloading")
	count := 0
	for _, item := range items {
		if err := s.DownloadOne(ctx, filepath.Join(localFolder, item.Name)); err != nil {
			return count, err
		}
		count++
		s.report(count, len(items), item.Name)
	}
	logger.Log.Info().Str("root", s.root).Int("downloaded", count).Msg("finished downloading")

	return count, nil
}

// ListImages returns the image items under the root. It fails with
// EmptyFolder when the root holds nothing at all.
func (s *Store) ListImages(ctx context.Context) ([]Item, error) {
	items, err := s.backend.List(ctx, s.root)
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, "list images", "failed to list "+s.root, err)
	}
	if len(items) == 0 {
		return nil, domain.Errorf(domain.KindEmptyFolder, "list images", "folder '%s' is empty", s.root)
	}

	images := make([]Item, 0, len(items))
	for _, item := range items {
		if IsImage(item.Name) {
			images = append(images, item)
		}
	}
	return images, nil
}

// MintLink requests a shareable link for item.
func (s *Store) MintLink(ctx context.Context, item Item) (string, error) {
	link, err := s.backend.ShareLink(ctx, item)
	if err != nil {
		metrics.RecordLinkMinted(false)
		return "", domain.NewError(domain.KindTransport, "mint link", "failed to create link for "+item.Name, err)
	}
	metrics.RecordLinkMinted(true)
	return link, nil
}

func (s *Store) report(done, total int, name string) {
	if s.progress != nil {
		s.progress(done, total, name)
	}
}
