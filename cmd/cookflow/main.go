package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	slog.SetDefault(slog.New(logger))

	app := newApp(NewRunner(RunnerOpts{Logger: logger}))
	if err := app.Run(context.Background(), os.Args); err != nil {
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			logger.Error(err.Error())
			os.Exit(exit.ExitCode())
		}
		logger.Fatal("cookflow failed", "error", err)
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cookflow",
		Usage: "Turn recipe videos into recipes and a grocery list",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Verbose logging",
			},
		},
		Before:   r.Setup,
		After:    r.Close,
		Commands: r.register(),
		// main decides the exit code
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}
