package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/matiasleandrokruk/vocalis/internal/api"
	"github.com/matiasleandrokruk/vocalis/internal/api/handlers"
	"github.com/matiasleandrokruk/vocalis/internal/domain/assistant"
	"github.com/matiasleandrokruk/vocalis/internal/domain/attachment"
	"github.com/matiasleandrokruk/vocalis/internal/domain/conversation"
	"github.com/matiasleandrokruk/vocalis/internal/domain/settings"
	"github.com/matiasleandrokruk/vocalis/internal/domain/turn"
	"github.com/matiasleandrokruk/vocalis/internal/domain/voice"
	"github.com/matiasleandrokruk/vocalis/internal/infra/config"
	"github.com/matiasleandrokruk/vocalis/internal/infra/eventbus"
	"github.com/matiasleandrokruk/vocalis/internal/infra/llm"
	"github.com/matiasleandrokruk/vocalis/internal/infra/logging"
	"github.com/matiasleandrokruk/vocalis/internal/infra/metrics"
	"github.com/matiasleandrokruk/vocalis/internal/infra/netguard"
	"github.com/matiasleandrokruk/vocalis/internal/infra/pdf"
	"github.com/matiasleandrokruk/vocalis/internal/infra/stt"
	"github.com/matiasleandrokruk/vocalis/internal/infra/tts"
	"github.com/matiasleandrokruk/vocalis/internal/server"
	"github.com/matiasleandrokruk/vocalis/internal/version"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	host            string
	port            int
	dataDir         string
	skipEngineCheck bool
	openBrowser     bool
}

func addServeFlags(fs *pflag.FlagSet, o *serveOptions) {
	fs.StringVar(&o.host, "host", "", "listen host (overrides VOCALIS_HOST)")
	fs.IntVar(&o.port, "port", 0, "listen port (overrides VOCALIS_PORT)")
	fs.StringVar(&o.dataDir, "data-dir", "", "directory holding settings and history files")
	fs.BoolVar(&o.skipEngineCheck, "skip-engine-check", false, "start even if the model daemon or speech engines are down")
	fs.BoolVar(&o.openBrowser, "open", false, "open the UI in the default browser once listening")
}

// apply copies flags the user set onto cfg.
func (o *serveOptions) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("host") {
		cfg.Host = o.host
	}
	if fs.Changed("port") {
		cfg.Port = o.port
	}
	if fs.Changed("data-dir") {
		cfg.DataDir = o.dataDir
	}
}

func newLogger(cfg config.Config, cmd *cobra.Command) (*slog.Logger, func()) {
	logger, closer := logging.New(logging.Options{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
		Dir:    cfg.LogDir,
		Out:    cmd.ErrOrStderr(),
	})
	slog.SetDefault(logger)
	return logger, func() { _ = closer.Close() }
}

// checkBoundary refuses any engine address that is not on this machine.
func checkBoundary(cfg config.Config) error {
	if err := netguard.Check(cfg.OllamaHost, netguard.DefaultOllamaPort); err != nil {
		return fmt.Errorf("OLLAMA_HOST must point to localhost: %w", err)
	}
	if cfg.STTBackend == "server" {
		if err := netguard.CheckHost(cfg.STTURL); err != nil {
			return fmt.Errorf("speech recognition URL must point to localhost: %w", err)
		}
	}
	if err := netguard.CheckHost(cfg.TTSURL); err != nil {
		return fmt.Errorf("speech synthesis URL must point to localhost: %w", err)
	}
	return nil
}

func newProvider(cfg config.Config) *llm.OllamaProvider {
	return llm.NewOllamaProvider(
		netguard.BaseURL(cfg.OllamaHost, netguard.DefaultOllamaPort),
		llm.WithCheckTimeout(cfg.CheckTimeout),
		llm.WithChatTimeout(cfg.ChatTimeout),
	)
}

func newTranscriber(cfg config.Config, logger *slog.Logger) (stt.Transcriber, error) {
	if cfg.STTBackend == "whispercpp" {
		return stt.NewLocal(cfg.WhisperModel)
	}
	return stt.NewServerClient(cfg.STTURL, logger), nil
}

func checkEngines(ctx context.Context, timeout time.Duration, engines map[string]handlers.HealthChecker) error {
	for name, e := range engines {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err := e.HealthCheck(pctx)
		cancel()
		if err != nil {
			return fmt.Errorf("%s not reachable: %w", name, err)
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, gopts *globalOptions, sopts *serveOptions) error {
	cfg, err := loadConfig(gopts, cmd.Flags(), sopts)
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(cfg, cmd)
	defer closeLog()

	fatal := func(msg string, err error) error {
		logger.Error(msg, "error", err)
		return exitError{code: 1}
	}

	if err := checkBoundary(cfg); err != nil {
		return fatal("refusing to start", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := newProvider(cfg)
	transcriber, err := newTranscriber(cfg, logger)
	if err != nil {
		return fatal("could not load speech recognition", err)
	}
	defer transcriber.Close() //nolint:errcheck
	synth := tts.NewKokoroClient(cfg.TTSURL)
	engines := map[string]handlers.HealthChecker{
		"ollama": provider,
		"stt":    transcriber,
		"tts":    synth,
	}

	if !sopts.skipEngineCheck {
		if err := checkEngines(ctx, cfg.CheckTimeout, engines); err != nil {
			return fatal("engine check failed", err)
		}
	}

	store := settings.NewStore(cfg.SettingsPath(), logger)
	history := conversation.NewStore(cfg.HistoryPath(), logger)
	discovery := llm.NewDiscovery(logger, provider, llm.NewCLILister())
	state := assistant.NewState(discovery, store, logger)
	current := state.Init(ctx)

	if !sopts.skipEngineCheck {
		sctx, cancel := context.WithTimeout(ctx, cfg.CheckTimeout)
		details, err := provider.ShowModel(sctx, current)
		cancel()
		if err != nil {
			return fatal("could not connect to Ollama or find model", fmt.Errorf("%s: %w", current, err))
		}
		logger.Info("model ready",
			"model", details.Name,
			"family", details.Family,
			"parameters", details.ParameterSize,
			"quantization", details.Quantization,
			"vision", details.HasCapability("vision"),
		)
	}

	catalog := voice.Default()
	bus := eventbus.New()
	defer bus.Close()
	m := metrics.New()
	m.TrackBusDrops(bus.Dropped)

	router := api.NewRouter(api.Deps{
		State:         state,
		Settings:      store,
		Conversations: history,
		Turns:         turn.NewOrchestrator(provider, synth, catalog, bus, logger),
		Transcriber:   transcriber,
		Documents:     attachment.NewIngestor(pdf.Fitz{}, logger),
		Catalog:       catalog,
		Engines:       engines,
		Metrics:       m,
		Logger:        logger,
		RestrictHost:  netguard.IsLoopbackHost(net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))),
	})

	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Host
	srvCfg.Port = cfg.Port
	srv := server.NewServer(router, srvCfg, logger)

	logger.Info("vocalis starting",
		"version", version.Version,
		"addr", cfg.Addr(),
		"model", current,
		"stt_backend", cfg.STTBackend,
		"settings", store.Path(),
		"history", cfg.HistoryPath(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	g.Go(func() error { return turn.NewReporter(bus, m, logger).Run(gctx) })
	g.Go(func() error { return state.Follow(gctx, bus) })
	g.Go(func() error {
		if err := store.Watch(gctx, bus); err != nil {
			logger.Warn("settings file watch disabled", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if sopts.openBrowser {
		url := "http://" + cfg.Addr() + "/"
		g.Go(func() error {
			if err := waitListening(gctx, cfg.Addr()); err != nil {
				return nil
			}
			if err := openURL(url); err != nil {
				logger.Warn("could not open browser", "url", url, "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fatal("server stopped", err)
	}
	logger.Info("vocalis stopped")
	return nil
}

func runModels(cmd *cobra.Command, gopts *globalOptions) error {
	cfg, err := loadConfig(gopts, nil, nil)
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(cfg, cmd)
	defer closeLog()

	if err := netguard.Check(cfg.OllamaHost, netguard.DefaultOllamaPort); err != nil {
		logger.Error("refusing to query models", "error", fmt.Errorf("OLLAMA_HOST must point to localhost: %w", err))
		return exitError{code: 1}
	}

	discovery := llm.NewDiscovery(logger, newProvider(cfg), llm.NewCLILister())
	models, err := discovery.ListModels(cmd.Context())
	if err != nil || len(models) == 0 {
		logger.Error("no models found", "error", err)
		return exitError{code: 1}
	}

	saved := settings.NewStore(cfg.SettingsPath(), logger).Load().Model()
	out := cmd.OutOrStdout()
	for _, name := range models {
		marker := " "
		if name == saved {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s\n", marker, name) //nolint:errcheck
	}
	return nil
}
