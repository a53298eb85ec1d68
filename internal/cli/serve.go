package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lazypower/companion/internal/config"
	"github.com/lazypower/companion/internal/llm"
	"github.com/lazypower/companion/internal/logging"
	"github.com/lazypower/companion/internal/notify"
	"github.com/lazypower/companion/internal/persona"
	"github.com/lazypower/companion/internal/server"
	"github.com/lazypower/companion/internal/store"
)

var (
	envFile  string
	addrFlag string
	dbFlag   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading COMPANION_* variables")
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "listen address, overrides COMPANION_SERVER_BIND/PORT")
	serveCmd.Flags().StringVar(&dbFlag, "db", "", "database path, overrides COMPANION_DB_PATH")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging)
	if dbFlag != "" {
		cfg.Database.Path = dbFlag
	}

	// Resolve database path
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	opts := []persona.Option{persona.WithRand(persona.NewRand(cfg.Engine.Seed))}

	var dispatcher *notify.Dispatcher
	if cfg.Redis.Addr != "" {
		pub, err := notify.NewRedisPublisher(notify.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, proactive fan-out disabled")
		} else {
			defer pub.Close()
			dispatcher = notify.NewDispatcher(pub, 256, 5*time.Second)
			opts = append(opts, persona.WithEnqueueHook(dispatcher.Hook))
			log.Info().Str("addr", cfg.Redis.Addr).Str("channel", cfg.Redis.Channel).Msg("proactive fan-out enabled")
		}
	}

	eng := persona.New(cfg.Persona(), opts...)

	snaps, err := db.LoadSnapshots()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	eng.Restore(snaps)
	log.Info().Int("users", len(snaps)).Str("db", dbPath).Msg("state restored")

	flush := func() {
		if !eng.TakeDirty() {
			return
		}
		if err := db.SaveSnapshots(eng.Export()); err != nil {
			log.Error().Err(err).Msg("flush state")
			eng.MarkDirty()
		}
	}

	sched, err := persona.NewScheduler(eng, cfg.Engine.TickInterval)
	if err != nil {
		return err
	}
	if err := sched.Every(cfg.Engine.FlushInterval, "flush", flush); err != nil {
		return err
	}
	sched.Start()

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		log.Warn().Err(err).Msg("LLM not configured, replies use local templates")
		llmClient = nil
	} else if llmClient != nil {
		log.Info().Str("provider", cfg.LLM.Provider).Str("model", cfg.LLM.Model).Msg("llm configured")
	}
	responder := llm.NewResponder(llmClient, cfg.LLM.PersonaName, cfg.LLM.Timeout)

	srv := server.New(db, eng, responder, server.Options{
		Version:       VersionString(),
		ChatPerMinute: cfg.RateLimit.PerMinute,
		ChatBurst:     cfg.RateLimit.Burst,
	})
	addr := cfg.ListenAddr()
	if addrFlag != "" {
		addr = addrFlag
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("companion serving")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-done:
		log.Info().Msg("shutting down")
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("server error")
	}

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if dispatcher != nil {
		dispatcher.Close()
	}

	if err := db.SaveSnapshots(eng.Export()); err != nil {
		return errors.Join(serveErr, fmt.Errorf("final flush: %w", err))
	}
	log.Info().Int("users", eng.Users().Len()).Msg("state saved")
	return serveErr
}
