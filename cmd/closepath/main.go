// Command closepath is the main entry point for the ClosePath sales call
// assistant server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/closepath/internal/app"
	"github.com/MrWong99/closepath/internal/config"
	"github.com/MrWong99/closepath/internal/observe"
	"github.com/MrWong99/closepath/pkg/provider/llm"
	"github.com/MrWong99/closepath/pkg/provider/llm/anthropic"
	"github.com/MrWong99/closepath/pkg/provider/llm/anyllm"
	"github.com/MrWong99/closepath/pkg/provider/llm/openai"
	"github.com/MrWong99/closepath/pkg/provider/stt"
	"github.com/MrWong99/closepath/pkg/provider/stt/browser"
	"github.com/MrWong99/closepath/pkg/provider/stt/deepgram"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, watch, err := loadConfig(*configPath, flagSet("config"), os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "closepath: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	slog.SetDefault(newLogger(cfg.Server.LogLevel, level))

	slog.Info("closepath starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		LLMProvider:    cfg.Providers.LLM.Name,
		STTProvider:    cfg.Providers.STT.Name,
		AnalysisMode:   analysisMode(cfg),
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers,
		app.WithLogLevel(level),
		app.WithVersion(version),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	if watch {
		w, err := config.NewWatcher(*configPath, application.ApplyConfig)
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadConfig reads path. A missing default config file is not an error: the
// server then starts from an empty config (demo scorecards unless
// ANTHROPIC_API_KEY is set) and hot reload is off.
func loadConfig(path string, explicit bool, getenv func(string) string) (*config.Config, bool, error) {
	cfg, err := config.LoadWithEnv(path, getenv)
	switch {
	case err == nil:
		return cfg, true, nil
	case errors.Is(err, os.ErrNotExist) && !explicit:
		cfg, err := config.Defaults(getenv)
		if err != nil {
			return nil, false, err
		}
		fmt.Fprintf(os.Stderr, "closepath: no %s found, starting with defaults (see configs/example.yaml)\n", path)
		return cfg, false, nil
	case errors.Is(err, os.ErrNotExist):
		return nil, false, fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", path)
	default:
		return nil, false, err
	}
}

// flagSet reports whether the named flag was given on the command line.
func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmBackends are the LLM providers served through any-llm-go.
var anyllmBackends = []string{"gemini", "mistral", "deepseek", "groq", "llamacpp"}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("anthropic", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anthropic.Option
		if entry.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(entry.BaseURL))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, anthropic.WithTimeout(d))
		}
		if n, ok := optInt(entry.Options, "max_retries"); ok {
			opts = append(opts, anthropic.WithMaxRetries(n))
		}
		return anthropic.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		opts := []openai.Option{openai.WithJSONMode(true)}
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, openai.WithTimeout(d))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range anyllmBackends {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		if ms, ok := optInt(entry.Options, "endpointing_ms"); ok {
			opts = append(opts, deepgram.WithEndpointing(ms))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("browser", func(config.ProviderEntry) (stt.Provider, error) {
		return browser.New(), nil
	})

	for _, kind := range []string{"llm", "stt"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = p
		slog.Info("provider created", "kind", "llm", "name", name, "model", cfg.Providers.LLM.Model)
	}

	for i, entry := range cfg.Providers.LLMFallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create llm fallback %d %q: %w", i, entry.Name, err)
		}
		ps.LLMFallbacks = append(ps.LLMFallbacks, app.NamedLLM{Name: entry.Name, Provider: p})
		slog.Info("provider created", "kind", "llm_fallback", "name", entry.Name, "model", entry.Model)
	}

	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		ps.STT = p
		slog.Info("provider created", "kind", "stt", "name", name)
	}

	for i, entry := range cfg.Providers.STTFallbacks {
		p, err := reg.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %d %q: %w", i, entry.Name, err)
		}
		ps.STTFallbacks = append(ps.STTFallbacks, app.NamedSTT{Name: entry.Name, Provider: p})
		slog.Info("provider created", "kind", "stt_fallback", "name", entry.Name)
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

// analysisMode reports where scorecards come from: a remote /api/analyze, the
// in-process LLM, or the fixed demo scorecard.
func analysisMode(cfg *config.Config) string {
	switch {
	case cfg.Analysis.Endpoint != "":
		return observe.AnalysisModeRemote
	case cfg.Providers.LLM.Name != "":
		return observe.AnalysisModeLocal
	default:
		return observe.AnalysisModeDemo
	}
}

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        ClosePath startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	fmt.Printf("║  %-12s    : %-19d ║\n", "Fallbacks", len(cfg.Providers.LLMFallbacks))
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	fmt.Printf("║  %-12s    : %-19d ║\n", "STT fallback", len(cfg.Providers.STTFallbacks))
	switch analysisMode(cfg) {
	case observe.AnalysisModeDemo:
		fmt.Printf("║  Analysis        : %-19s ║\n", "demo scorecard")
	case observe.AnalysisModeRemote:
		fmt.Printf("║  Analysis        : %-19s ║\n", "remote")
	}
	fmt.Printf("║  Glossary terms  : %-19d ║\n", len(cfg.Glossary.Terms))
	if cfg.Events.Enabled {
		fmt.Printf("║  Kafka topic     : %-19s ║\n", truncate(orDefault(cfg.Events.Topic, "closepath.calls")))
	} else {
		fmt.Printf("║  Kafka           : %-19s ║\n", "(disabled)")
	}
	fmt.Printf("║  Listen addr     : %-19s ║\n", orDefault(cfg.Server.ListenAddr, ":8080"))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, truncate(value))
}

func truncate(s string) string {
	if len(s) > 19 {
		return s[:16] + "…"
	}
	return s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger returns a text logger on stderr whose level is held in v so it
// can change on config reload.
func newLogger(level config.LogLevel, v *slog.LevelVar) *slog.Logger {
	switch level {
	case config.LogDebug:
		v.Set(slog.LevelDebug)
	case config.LogWarn:
		v.Set(slog.LevelWarn)
	case config.LogError:
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: v}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer option. YAML decodes whole numbers as int.
func optInt(opts map[string]any, key string) (int, bool) {
	switch v := opts[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// optDuration parses a duration option such as "30s". Invalid values are
// logged and ignored.
func optDuration(opts map[string]any, key string) time.Duration {
	s := optString(opts, key)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		slog.Warn("ignoring invalid duration option", "key", key, "value", s, "err", err)
		return 0
	}
	return d
}
