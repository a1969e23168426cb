package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/minder/internal/actor"
	"github.com/soyeahso/minder/internal/config"
	"github.com/soyeahso/minder/internal/gateway"
	"github.com/soyeahso/minder/internal/llm"
	"github.com/soyeahso/minder/internal/ratelimit"
	"github.com/soyeahso/minder/internal/retrieval"
	"github.com/soyeahso/minder/internal/store"
	"github.com/soyeahso/minder/internal/workflow"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			dbPath := config.DatabasePath(cfg, paths)
			db, err := store.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()
			log.Info().Str("path", dbPath).Msg("database open")

			messages := store.NewMessageStore(db)
			tasks := store.NewTaskStore(db)
			knowledge := store.NewKnowledgeStore(db)
			runs := store.NewWorkflowStore(db)

			var model llm.Client
			switch cfg.Model.Provider {
			case "mock":
				model = &llm.MockClient{}
			default:
				model = llm.NewOpenAIClient(llm.OpenAIConfig{
					APIKey:  cfg.Model.APIKey,
					BaseURL: cfg.Model.BaseURL,
					Model:   cfg.Model.Name,
				}, log)
			}

			engine := workflow.NewEngine(runs, tasks, messages, log)
			engine.SetRetention(time.Duration(cfg.Retention.CompletedTaskDays) * 24 * time.Hour)

			deps := actor.Deps{
				State:     store.NewStateStore(db),
				Messages:  messages,
				Tasks:     tasks,
				Knowledge: knowledge,
				Model:     model,
				Limiter:   ratelimit.New(),
				Engine:    engine,
				Limits: actor.Limits{
					ChatCalls: cfg.Limits.ChatPerMinute,
					TaskCalls: cfg.Limits.TaskPerMinute,
					Window:    time.Minute,
				},
				Prompt:      cfg.Session.SystemPrompt,
				MaxTokens:   cfg.Session.MaxContextTokens,
				MaxMessages: cfg.Session.MaxContextMessages,
				TopK:        cfg.Retrieval.TopK,
				ReplyTokens: cfg.Model.MaxTokens,
				Temperature: cfg.Model.Temperature,
				IdleTimeout: time.Duration(cfg.Session.IdleMinutes) * time.Minute,
			}
			if cfg.Retrieval.Enabled {
				deps.Search = retrieval.NewFTSSearcher(knowledge, log)
			}

			manager := actor.NewManager(deps, log)
			defer manager.Shutdown()

			srv := gateway.New(cfg, manager, log)
			worker := workflow.NewWorker(engine, runs, tasks, log)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Start(ctx) })
			g.Go(func() error { return worker.Start(ctx) })

			if err := g.Wait(); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}
