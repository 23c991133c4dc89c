package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/pyropy/paster/core/config"
	"github.com/pyropy/paster/core/fetcher"
	"github.com/pyropy/paster/core/output"
	"github.com/pyropy/paster/core/paster"
	"github.com/pyropy/paster/core/scanner"
	"github.com/pyropy/paster/lib/checksum"
	"github.com/pyropy/paster/lib/logger"
)

// pasteFlags returns fresh flag values so the app and the paste command
// do not share parse state.
func pasteFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "YAML config file",
		},
		&cli.IntFlag{
			Name:    "threads",
			Aliases: []string{"t"},
			Value:   1,
			Usage:   "number of concurrent fetch workers",
		},
		&cli.IntFlag{
			Name:    "image",
			Aliases: []string{"n"},
			Value:   1,
			Usage:   "image number to fetch",
		},
		&cli.IntFlag{
			Name:  "fragments",
			Value: 50,
			Usage: "number of strips the image is split into",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Value:   "all.png",
			Usage:   "output file, or object key when --bucket is set",
		},
		&cli.StringFlag{
			Name:  "bucket",
			Usage: "blob bucket URL to write the output to, e.g. file:///tmp/out or mem://",
		},
		&cli.StringSliceFlag{
			Name:  "server",
			Usage: "image server base URL, repeatable",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "serve Prometheus metrics on this address while the run is in progress",
		},
	}
}

var pasteCmd = &cli.Command{
	Name:   "paste",
	Usage:  "Fetch all strips of an image and write the stitched PNG",
	Flags:  pasteFlags(),
	Action: paste,
}

func paste(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	runID := uuid.New()
	runLog, err := logger.New("paster", cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	runLog = runLog.With("run", runID.String())
	defer runLog.Sync()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	metrics := paster.NewMetrics(reg)
	if addr := c.String("metrics-addr"); addr != "" {
		srv := serveMetrics(runLog, addr, reg)
		defer srv.Close()
	}

	sink, err := output.Open(ctx, cfg.Bucket, cfg.Output)
	if err != nil {
		return err
	}
	defer sink.Close()

	opts := fetcher.DefaultOptions()
	opts.Timeout = cfg.Timeout
	opts.RequestID = runID.String()

	p := paster.New(cfg, fetcher.NewClient(opts), sink, runLog, metrics)
	_, err = p.Run(ctx)

	return err
}

// loadConfig layers command line flags over the config file and
// environment. Only flags given explicitly override.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("threads") {
		cfg.Threads = c.Int("threads")
	}
	if c.IsSet("image") {
		cfg.Image = c.Int("image")
	}
	if c.IsSet("fragments") {
		cfg.Fragments = c.Int("fragments")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("bucket") {
		cfg.Bucket = c.String("bucket")
	}
	if c.IsSet("server") {
		cfg.Servers = c.StringSlice("server")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}

	return cfg, nil
}

func serveMetrics(log *zap.SugaredLogger, addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infow("metrics", "status", "listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warnw("metrics", "error", err)
		}
	}()

	return srv
}

var findCmd = &cli.Command{
	Name:      "findpng",
	Usage:     "List every file under a directory that is a PNG",
	ArgsUsage: "DIR",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("usage: paster findpng DIR", 2)
		}

		found, err := scanner.Find(c.Args().First())
		if err != nil {
			return err
		}

		if len(found) == 0 {
			fmt.Fprintln(c.App.Writer, "findpng: No PNG file found")
			return nil
		}
		for _, path := range found {
			fmt.Fprintln(c.App.Writer, path)
		}

		return nil
	},
}

var catCmd = &cli.Command{
	Name:      "catpng",
	Usage:     "Concatenate PNG files vertically in argument order",
	ArgsUsage: "FILE...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Value:   "all.png",
			Usage:   "output file",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return cli.Exit("usage: paster catpng [-o out.png] FILE...", 2)
		}

		img, err := paster.Concat(c.Args().Slice())
		if err != nil {
			return err
		}

		ctx := context.Background()
		sink, err := output.Open(ctx, "", c.String("output"))
		if err != nil {
			return err
		}
		defer sink.Close()

		if err := sink.Write(ctx, img.Encoded); err != nil {
			return err
		}

		log.Infow("catpng",
			"output", c.String("output"),
			"inputs", c.NArg(),
			"width", img.Header.Width,
			"height", img.Header.Height,
			"digest", checksum.Digest(img.Encoded),
		)

		return nil
	},
}
