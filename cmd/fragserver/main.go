package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/pyropy/paster/core/fragserver"
	"github.com/pyropy/paster/lib/logger"
)

func main() {
	app := &cli.App{
		Name:  "fragserver",
		Usage: "serve random image strips the way the remote image servers do",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":2520", Usage: "listen address"},
			&cli.IntFlag{Name: "images", Value: 3, Usage: "number of image sets, numbered from 1"},
			&cli.IntFlag{Name: "fragments", Value: 50, Usage: "strips per image"},
			&cli.StringFlag{Name: "image-dir", Usage: "directory holding 1.png, 2.png, ... (generated patterns when empty)"},
			&cli.IntFlag{Name: "width", Value: 400, Usage: "generated pattern width"},
			&cli.IntFlag{Name: "height", Value: 300, Usage: "generated pattern height"},
			&cli.Float64Flag{Name: "corrupt-rate", Usage: "fraction of responses with a broken checksum"},
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fragserver:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log, err := logger.New("fragserver", c.String("log-level"))
	if err != nil {
		return err
	}
	defer log.Sync()

	rate := c.Float64("corrupt-rate")
	if rate < 0 || rate > 1 {
		return fmt.Errorf("corrupt-rate must be in [0, 1], got %v", rate)
	}

	srv := fragserver.NewServer(log, fragserver.Options{CorruptRate: rate})
	if err := loadSets(c, log, srv); err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:         c.String("addr"),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infow("startup", "status", "fragment server started", "address", httpSrv.Addr, "images", srv.Sets())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case <-shutdown:
	}

	log.Infow("shutdown", "status", "fragment server stopping", "address", httpSrv.Addr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Infow("shutdown", "status", "fragment server stopped")
	return nil
}

func loadSets(c *cli.Context, log *zap.SugaredLogger, srv *fragserver.Server) error {
	n := c.Int("fragments")
	dir := c.String("image-dir")

	for image := 1; image <= c.Int("images"); image++ {
		var (
			set *fragserver.ImageSet
			err error
		)

		if dir != "" {
			set, err = fragserver.LoadFile(filepath.Join(dir, strconv.Itoa(image)+".png"), n)
		} else {
			img, perr := fragserver.Pattern(c.Int("width"), c.Int("height"), uint8(image))
			if perr != nil {
				return perr
			}
			set, err = fragserver.Split(img, n)
		}
		if err != nil {
			return fmt.Errorf("image %d: %w", image, err)
		}

		srv.AddSet(image, set)
		log.Infow("startup", "image", image, "width", set.Header.Width, "height", set.Header.Height, "strips", len(set.Strips))
	}

	return nil
}
