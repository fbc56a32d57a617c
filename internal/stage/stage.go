// Package stage fetches the URLs of a long table into a local staging folder.
package stage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/andresuchdata/linksync/internal/config"
	"github.com/andresuchdata/linksync/internal/domain"
	"github.com/andresuchdata/linksync/internal/metrics"
	"github.com/andresuchdata/linksync/internal/table"
	"github.com/andresuchdata/linksync/pkg/logger"
)

// ProgressFunc is called after each row, staged or not.
type ProgressFunc func(done, total int, name string)

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct{}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	logger.Log.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	logger.Log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	logger.Log.Warn().Fields(keysAndValues).Msg(msg)
}

// Stager downloads row URLs to name+ext files.
type Stager struct {
	client   *retryablehttp.Client
	progress ProgressFunc
}

// New builds a Stager from the fetch settings. RetryMax 0 means one attempt
// per URL.
func New(cfg config.FetchConfig) *Stager {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = &retryLogger{}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	return &Stager{client: client}
}

// OnProgress registers fn for subsequent Stage calls.
func (s *Stager) OnProgress(fn ProgressFunc) {
	s.progress = fn
}

// Stage creates folder and fetches every row into it. Rows that fail to fetch
// or write, or whose name would land outside folder, are logged and skipped.
// A cancelled context stops the batch early. Only a failure to create the
// folder is returned. The result is the number of files written.
func (s *Stager) Stage(ctx context.Context, long table.LongTable, folder string) (int, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return 0, domain.NewError(domain.KindIO, "stage", "failed to create "+folder, err)
	}

	logger.Log.Info().Str("folder", folder).Int("rows", len(long)).Msg("start downloading images")
	count := 0
	for i, row := range long {
		filename := row.Name + extensionOf(row.URL)
		dest, err := stagingPath(folder, filename)
		if err == nil {
			err = s.fetch(ctx, row.URL, dest)
		}
		if err != nil {
			metrics.RecordStaged(false)
			logger.Log.Warn().Err(err).Str("url", row.URL).Str("name", row.Name).Msg("failed to download")
		} else {
			metrics.RecordStaged(true)
			count++
			logger.Log.Info().Str("file", filename).Msg("downloaded")
		}
		if s.progress != nil {
			s.progress(i+1, len(long), filename)
		}

		if ctx.Err() != nil {
			logger.Log.Warn().Err(ctx.Err()).Int("staged", count).Int("remaining", len(long)-i-1).Msg("downloading interrupted")
			return count, nil
		}
	}
	logger.Log.Info().Str("folder", folder).Int("staged", count).Msg("finished downloading images")

	return count, nil
}

// stagingPath returns folder/filename, refusing names that are not a single
// path element.
func stagingPath(folder, filename string) (string, error) {
	if filename == "" || filename == "." || filename == ".." || strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("invalid file name %q", filename)
	}
	dest := filepath.Join(folder, filename)
	if filepath.Dir(dest) != filepath.Clean(folder) {
		return "", fmt.Errorf("file name %q escapes %s", filename, folder)
	}
	return dest, nil
}

func (s *Stager) fetch(ctx context.Context, rawURL, dest string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	return os.WriteFile(dest, body, 0o644)
}

// extensionOf returns the extension of the URL path, with its dot, or "".
func extensionOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Ext(rawURL)
	}
	return path.Ext(u.Path)
}
