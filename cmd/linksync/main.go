package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/linksync/internal/config"
	"github.com/andresuchdata/linksync/internal/storage"
	"github.com/andresuchdata/linksync/internal/syncer"
	"github.com/andresuchdata/linksync/internal/table"
	"github.com/andresuchdata/linksync/pkg/logger"
)

func newRootFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "root",
		Usage:    "Remote root folder name",
		Required: true,
	}
}

func newTokenFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "token",
		Usage:   "Credential for the storage backend",
		EnvVars: []string{"LINKSYNC_TOKEN"},
	}
}

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "linksync",
		Usage: "Upload images to a remote store and collect shareable links",
		Before: func(c *cli.Context) error {
			cfg := config.Load()
			logger.SetOutput(os.Stderr)
			logger.SetLevel(cfg.App.LogLevel)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Upload a folder or the images linked from a sheet, then mint links",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Usage:    "Local folder, .xlsx or .csv sheet of links",
						Required: true,
					},
					newRootFlag(),
					newTokenFlag(),
					&cli.StringFlag{
						Name:  "output",
						Usage: "Write the links as a wide .xlsx or .csv table",
					},
				},
				Action: runSync,
			},
			{
				Name:  "download",
				Usage: "Download every file of an existing remote root",
				Flags: []cli.Flag{
					newRootFlag(),
					newTokenFlag(),
					&cli.StringFlag{
						Name:     "dest",
						Usage:    "Local destination folder",
						Required: true,
					},
				},
				Action: runDownload,
			},
			{
				Name:  "reshape",
				Usage: "Convert a links table between wide and long layouts",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Usage: "Input .xlsx or .csv", Required: true},
					&cli.StringFlag{Name: "out", Usage: "Output .xlsx or .csv", Required: true},
					&cli.StringFlag{Name: "to", Usage: "Target layout: wide or long", Value: "wide"},
					&cli.BoolFlag{Name: "dedup", Usage: "Drop repeated (name, url) pairs"},
				},
				Action: runReshape,
			},
			{
				Name:  "split",
				Usage: "Split a multi-value column into numbered columns",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Usage: "Input .xlsx or .csv", Required: true},
					&cli.StringFlag{Name: "out", Usage: "Output .xlsx or .csv", Required: true},
					&cli.StringFlag{Name: "column", Usage: "Column to split", Required: true},
					&cli.StringFlag{Name: "sep", Usage: "Separator (default newline)"},
				},
				Action: runSplit,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("linksync failed")
		os.Exit(1)
	}
}

func openBackend(c *cli.Context) (storage.Backend, error) {
	cfg := config.Load()
	return storage.NewBackend(c.Context, cfg.Storage, c.String("token"))
}

func runSync(c *cli.Context) error {
	backend, err := openBackend(c)
	if err != nil {
		return err
	}

	cfg := config.Load()
	s, err := syncer.Open(c.Context, backend, c.String("root"), syncer.Options{
		Observer: newBarObserver(os.Stderr),
		Fetch:    cfg.Fetch,
	})
	if err != nil {
		return err
	}

	links, err := s.SyncAndCollectLinks(c.Context, c.String("input"))
	if err != nil {
		return err
	}

	if out := c.String("output"); out != "" {
		if err := table.WriteSheet(out, table.ToWide(links).Sheet()); err != nil {
			return err
		}
		logger.Log.Info().Str("output", out).Int("links", len(links)).Msg("links written")
		return nil
	}

	return table.WriteCSV(os.Stdout, links.Sheet())
}

func runDownload(c *cli.Context) error {
	backend, err := openBackend(c)
	if err != nil {
		return err
	}

	store, err := storage.OpenExisting(c.Context, backend, c.String("root"))
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	store.OnProgress(func(done, total int, name string) {
		if bar == nil {
			bar = newBar(os.Stderr, "Downloading", total)
		}
		_ = bar.Set(done)
	})

	count, err := store.DownloadAll(c.Context, c.String("dest"))
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "downloaded %d files to %s\n", count, c.String("dest"))
	return nil
}

func runReshape(c *cli.Context) error {
	return reshape(c.String("in"), c.String("out"), c.String("to"), c.Bool("dedup"))
}

func reshape(in, out, layout string, dedup bool) error {
	to := strings.ToLower(layout)
	if to != "wide" && to != "long" {
		return fmt.Errorf("--to must be wide or long, got %q", layout)
	}

	long, err := table.LoadLong(in)
	if err != nil {
		return err
	}
	if dedup {
		long = table.Dedup(long)
	}

	switch to {
	case "wide":
		return table.WriteSheet(out, table.ToWide(long).Sheet())
	default:
		return table.WriteSheet(out, long.Sheet())
	}
}

func runSplit(c *cli.Context) error {
	sheet, err := table.ReadSheet(c.String("in"))
	if err != nil {
		return err
	}
	split, err := table.SplitColumn(sheet, c.String("column"), c.String("sep"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.String("out")), 0o755); err != nil {
		return err
	}
	return table.WriteSheet(c.String("out"), split)
}
