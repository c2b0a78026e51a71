package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"cookflow/internal/ai"
	"cookflow/internal/billing"
	"cookflow/internal/cache"
	"cookflow/internal/config"
	"cookflow/internal/quota"
	"cookflow/internal/recipes"
	"cookflow/internal/scrape"
)

// Runner holds the dependencies shared by every command.
type Runner struct {
	cfg     *config.Config
	cache   cache.Cache
	store   *recipes.Store
	gate    *quota.Gate
	billing billing.Entitlements
	logger  *log.Logger
	output  io.Writer
}

type RunnerOpts struct {
	Logger *log.Logger
	Output io.Writer
}

func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{logger: opts.Logger, output: opts.Output}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		extractCommand, recipesCommand, groceryCommand, quotaCommand, serveCommand, logsCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// Setup loads configuration and opens the store. It runs before any command.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		r.logger.SetLevel(log.DebugLevel)
	}
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, err
	}
	c, err := cache.MakeCache(ctx, cfg)
	if err != nil {
		return ctx, fmt.Errorf("failed to open store: %w", err)
	}
	match, err := recipes.MatcherFor(cfg.Grocery.Match)
	if err != nil {
		return ctx, err
	}

	r.cfg = cfg
	r.cache = c
	r.store = recipes.NewStore(c, match)
	r.gate = quota.New(c)
	r.billing = billing.NewFromConfig(cfg)
	return ctx, nil
}

func (r *Runner) Close(context.Context, *cli.Command) error {
	if r.cache == nil {
		return nil
	}
	return cache.Close(r.cache)
}

// pipeline is built on demand so commands that only read the store work
// without a Gemini key.
func (r *Runner) pipeline(ctx context.Context, ent billing.Entitlements) (*recipes.Pipeline, error) {
	gen, err := ai.NewGenerator(ctx, r.cfg.Gemini)
	if err != nil {
		return nil, err
	}
	key := r.cfg.Gemini.APIKey
	if r.cfg.Gemini.Backend == "mock" {
		key = "mock"
	}
	fetcher := scrape.New(scrape.Options{
		Timeout: r.cfg.Fetch.Timeout,
		Retries: r.cfg.Fetch.Retries,
		Rate:    r.cfg.Fetch.Rate,
	})
	return recipes.NewPipeline(fetcher, ai.NewExtractor(gen), r.gate, ent, r.store, key), nil
}

func (r *Runner) writeJSON(data any) error {
	enc := json.NewEncoder(r.output)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format+"\n", args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
