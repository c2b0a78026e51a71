package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"cookflow/internal/logsink"
)

func logsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "Read server logs back from the log sink",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "since",
				Usage: "How far back to read",
				Value: time.Hour,
			},
			&cli.StringFlag{
				Name:  "level",
				Usage: "Only show this level (INFO, WARN, ERROR)",
			},
		},
		Action: r.Logs,
	}
}

func (r *Runner) Logs(ctx context.Context, cmd *cli.Command) error {
	if !r.cfg.LogSinkEnabled() {
		return cli.Exit("log sink is not configured; set AZURE_STORAGE_ACCOUNT_NAME, AZURE_STORAGE_PRIMARY_ACCOUNT_KEY and LOGSINK_CONTAINER", 1)
	}
	reader, err := logsink.NewReader(logsink.Config{
		AccountName: r.cfg.Azure.AccountName,
		AccountKey:  r.cfg.Azure.AccountKey,
		Container:   r.cfg.LogSink.Container,
	})
	if err != nil {
		return err
	}
	entries, err := reader.Since(ctx, cmd.Duration("since"))
	if err != nil {
		return err
	}
	level := strings.ToUpper(cmd.String("level"))
	for _, e := range entries {
		if level != "" && e.Level != level {
			continue
		}
		if err := r.writePlainln("%s", formatEntry(e)); err != nil {
			return err
		}
	}
	return nil
}

func formatEntry(e logsink.Entry) string {
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", styles.help.Render(e.TS.Local().Format(time.DateTime)), e.Level, e.Msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", styles.help.Render(k), e.Attrs[k])
	}
	return b.String()
}
