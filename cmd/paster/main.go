package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pyropy/paster/lib/logger"
)

var log, _ = logger.New("paster", "info")

func main() {
	app := &cli.App{
		Name:     "paster",
		Usage:    "fetch image strips concurrently and stitch them into one PNG",
		Flags:    pasteFlags(),
		Action:   paste,
		Commands: []*cli.Command{pasteCmd, findCmd, catCmd},
	}

	if err := app.Run(os.Args); err != nil {
		log.Errorw("paster", "error", err)
		log.Sync()
		os.Exit(1)
	}
}
