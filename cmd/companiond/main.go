package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/carevoice/companion/internal/config"
	"github.com/carevoice/companion/internal/server"
	"github.com/carevoice/companion/pkg/agent"
	"github.com/carevoice/companion/pkg/ai/asr"
	asrfake "github.com/carevoice/companion/pkg/ai/asr/fake"
	"github.com/carevoice/companion/pkg/ai/reply"
	"github.com/carevoice/companion/pkg/ai/sentiment"
	"github.com/carevoice/companion/pkg/ai/tts"
	"github.com/carevoice/companion/pkg/feature"
	"github.com/carevoice/companion/pkg/memory"
	"github.com/carevoice/companion/pkg/plugin/ollama"
	"github.com/carevoice/companion/pkg/plugin/openai"
	"github.com/carevoice/companion/pkg/reminder"
	"github.com/carevoice/companion/pkg/session"
	"github.com/carevoice/companion/pkg/vad"
	"github.com/carevoice/companion/pkg/version"
	"github.com/carevoice/companion/pkg/voice"
)

var rootCmd = &cobra.Command{
	Use:          "companiond",
	Short:        "Voice companion daemon",
	Long:         "companiond runs the voice companion: real-time turn taking, conversation memory and scheduled reminders over WebSocket or HTTP.",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the companion server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
			cfg.ListenAddr = addr
		}
		if db, _ := cmd.Flags().GetString("db"); db != "" {
			cfg.DBPath = db
		}
		if noDB, _ := cmd.Flags().GetBool("no-db"); noDB {
			cfg.DBPath = ""
		}

		logger := setupLogger()
		logger.Info("starting companiond",
			slog.String("version", version.Version),
			slog.String("commit", version.GitCommit),
			slog.String("listen", cfg.ListenAddr))

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return serve(ctx, cfg, logger)
	},
}

func main() {
	rootCmd.AddCommand(versionCmd, serveCmd)
	serveCmd.Flags().String("listen", "", "listen address (overrides COMPANION_LISTEN_ADDR)")
	serveCmd.Flags().String("db", "", "sqlite database path (overrides COMPANION_DB_PATH)")
	serveCmd.Flags().Bool("no-db", false, "run without persistence")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{}
	switch os.Getenv("COMPANION_LOG_LEVEL") {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	var handler slog.Handler
	if os.Getenv("COMPANION_LOG_FORMAT") == "console" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	transcriber, generators, synth := buildProviders(cfg, logger)
	chain := reply.NewChain(logger, generators...)

	// The word-of-day exercise fires once a day on a built-in schedule;
	// medication schedules come from the database.
	wordOfDay := reminder.NewStaticStore(reminder.Schedule{
		ID:      "word-of-day",
		Kind:    reminder.KindWordOfDay,
		At:      "10:00",
		Enabled: true,
	})

	var persister memory.Persister
	var scheduleStore reminder.Store
	if cfg.DBPath != "" {
		memStore, err := memory.OpenSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening conversation store: %w", err)
		}
		defer memStore.Close()
		persister = memStore

		remStore, err := reminder.OpenSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening schedule store: %w", err)
		}
		defer remStore.Close()
		scheduleStore = reminder.NewMultiStore(remStore, wordOfDay)
	} else {
		logger.Info("persistence disabled")
		scheduleStore = wordOfDay
	}

	scheduler := reminder.New(scheduleStore, logger)

	styling := voice.DefaultConfig()
	styling.SundowningHour = cfg.SundowningHour

	factory := func(id string) (*agent.Agent, *vad.Pipeline, error) {
		opts := []memory.Option{}
		if persister != nil {
			opts = append(opts, memory.WithPersister(persister))
		}
		ag := agent.New(agent.Config{
			Transcriber: transcriber,
			Classifier:  sentiment.NewLexicon(),
			Generator:   chain,
			Synthesizer: synth,
			Memory:      memory.New(opts...),
			Styling:     styling,
			Medication:  feature.NewMedication(),
			WordOfDay:   feature.NewWordOfDay(),
			Words:       feature.NewStaticWords(nil),
			Greet:       cfg.Greet,
			Logger:      logger,
		})
		gateCfg := vad.GateConfig{
			VoiceThreshold: cfg.VoiceThreshold,
			OnsetDuration:  cfg.OnsetDuration,
			PatienceWindow: cfg.PatienceWindow,
		}
		pipe := vad.NewPipeline(gateCfg, vad.DefaultAssemblerConfig(), logger)
		return ag, pipe, nil
	}

	manager := session.NewManager(factory, scheduler, logger,
		session.WithIdleTimeout(cfg.IdleTimeout))
	defer manager.CloseAll()

	go scheduler.Run(ctx)
	go manager.Run(ctx)

	srv := server.New(ctx, manager, cfg.SampleRate, logger)
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	logger.Info("listening", slog.String("addr", cfg.ListenAddr))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// buildProviders assembles the vendor adapters from configuration,
// falling back to offline components so the daemon always starts.
func buildProviders(cfg config.Config, logger *slog.Logger) (asr.Transcriber, []reply.Generator, tts.Synthesizer) {
	var transcriber asr.Transcriber
	var generators []reply.Generator
	var synth tts.Synthesizer

	if cfg.OpenAIKey != "" {
		oaCfg := openai.Config{
			APIKey:    cfg.OpenAIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			ChatModel: cfg.ChatModel,
		}
		if t, err := openai.NewTranscriber(oaCfg); err == nil {
			transcriber = t
		} else {
			logger.Warn("openai transcriber unavailable", "error", err)
		}
		if g, err := openai.NewGenerator(oaCfg); err == nil {
			generators = append(generators, g)
		} else {
			logger.Warn("openai generator unavailable", "error", err)
		}
		if s, err := openai.NewSynthesizer(oaCfg); err == nil {
			synth = tts.NewChain(logger, s)
		} else {
			logger.Warn("openai synthesizer unavailable", "error", err)
		}
	}

	if cfg.OllamaHost != "" && cfg.OllamaModel != "" {
		if g, err := ollama.NewGenerator(ollama.Config{
			Host:  cfg.OllamaHost,
			Model: cfg.OllamaModel,
		}); err == nil {
			generators = append(generators, g)
		} else {
			logger.Warn("ollama generator unavailable", "error", err)
		}
	}

	// The rule-based generator anchors the chain: conversations keep
	// going with no vendors configured at all.
	generators = append(generators, reply.NewRuleBased())

	if transcriber == nil {
		logger.Warn("no transcription vendor configured, using fake transcriber")
		transcriber = asrfake.NewFakeTranscriber()
	}
	if synth == nil {
		logger.Warn("no speech vendor configured, replies will be text-only")
	}
	return transcriber, generators, synth
}
