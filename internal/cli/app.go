package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/sprintfactory/internal/config"
	"github.com/lucasnoah/sprintfactory/internal/db"
	"github.com/lucasnoah/sprintfactory/internal/db/pgstore"
	"github.com/lucasnoah/sprintfactory/internal/interview"
	"github.com/lucasnoah/sprintfactory/internal/knowledge"
	"github.com/lucasnoah/sprintfactory/internal/oracle"
	"github.com/lucasnoah/sprintfactory/internal/orchestrator"
	"github.com/lucasnoah/sprintfactory/internal/planning"
	"github.com/lucasnoah/sprintfactory/internal/prompt"
	"github.com/lucasnoah/sprintfactory/internal/session"
)

// oracleBuilder replaces oracle.New when set (tests).
var oracleBuilder func(oracle.Settings) (oracle.Oracle, error)

// app is everything a command needs, wired from the configuration.
type app struct {
	cfg      *config.Config
	orch     *orchestrator.Orchestrator
	oracle   *oracle.Manager
	pipeline *planning.Pipeline
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// eventBackend is a document backend that also keeps the planning event log.
type eventBackend interface {
	knowledge.Backend
	orchestrator.EventLog
}

// openBackend opens the configured context store backend. The memory backend
// has no event log.
func openBackend(ctx context.Context, cfg config.Store) (knowledge.Backend, orchestrator.EventLog, error) {
	var b eventBackend
	switch cfg.Backend {
	case "memory":
		return knowledge.NewMemoryBackend(), nil, nil
	case "postgres":
		pg, err := pgstore.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		b = pg
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			p, err := db.DefaultDBPath()
			if err != nil {
				return nil, nil, fmt.Errorf("db path: %w", err)
			}
			path = p
		}
		d, err := db.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		if err := d.Migrate(); err != nil {
			d.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		b = d
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	return b, b, nil
}

// newApp loads the configuration and wires the store, sessions, oracle,
// interview loop and planning pipeline into an orchestrator.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s (run 'sprintfactory config validate')", errs[0])
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a := &app{cfg: cfg}
	backend, events, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	store := knowledge.NewStore(backend, knowledge.Options{ChunkSize: cfg.Store.ChunkSize, TopK: cfg.Store.TopK})
	a.closers = append(a.closers, store.Close)

	sessions, err := session.Open(ctx, cfg.Session)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open sessions: %w", err)
	}
	a.closers = append(a.closers, sessions.Close)

	settings, err := oracle.SettingsFromConfig(cfg.LLM)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.oracle = oracle.NewManager(settings)
	if oracleBuilder != nil {
		a.oracle.SetBuilder(oracleBuilder)
	}

	logger := log.New(io.Discard, "", 0)
	if verbose {
		logger = log.New(cmd.ErrOrStderr(), "[ORCH] ", log.LstdFlags)
	}

	loop := interview.NewLoop(oracle.Instrument(a.oracle, "interview"), cfg.Interview.ReadyThreshold)
	loop.SetLogger(logger)
	if dir := cfg.Planning.TemplateDir; dir != "" {
		tmpl, err := prompt.Load(interview.TemplateName, dir)
		if err != nil {
			a.Close()
			return nil, err
		}
		loop.SetTemplate(tmpl)
	}

	a.pipeline = planning.New(a.oracle, nil, planning.Options{
		SeniorityMultiplier: cfg.Planning.SeniorityMultiplier,
		HoursPerWeek:        cfg.Planning.HoursPerWeek,
		TemplateDir:         cfg.Planning.TemplateDir,
	})
	a.pipeline.SetLogger(logger)

	a.orch = orchestrator.New(store, sessions, loop, a.pipeline, events)
	a.orch.SetLogger(logger)
	return a, nil
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func isJSON(cmd *cobra.Command) bool {
	format, _ := cmd.Flags().GetString("format")
	return format == "json"
}
