// Package app wires all ClosePath subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject doubles via functional options (WithEventWriter,
// WithAnalysisClient, etc.). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/closepath/internal/analysis"
	"github.com/MrWong99/closepath/internal/analyzer"
	"github.com/MrWong99/closepath/internal/api"
	"github.com/MrWong99/closepath/internal/config"
	"github.com/MrWong99/closepath/internal/demo"
	"github.com/MrWong99/closepath/internal/events"
	"github.com/MrWong99/closepath/internal/health"
	"github.com/MrWong99/closepath/internal/mcpserver"
	"github.com/MrWong99/closepath/internal/observe"
	"github.com/MrWong99/closepath/internal/resilience"
	"github.com/MrWong99/closepath/internal/session"
	"github.com/MrWong99/closepath/internal/transcript/phonetic"
	"github.com/MrWong99/closepath/internal/trigger"
	"github.com/MrWong99/closepath/pkg/provider/llm"
	"github.com/MrWong99/closepath/pkg/provider/stt"
	"github.com/MrWong99/closepath/pkg/types"
)

const (
	defaultListenAddr = ":8080"
	shutdownTimeout   = 15 * time.Second
)

// NamedLLM is an LLM provider with the name it was configured under.
type NamedLLM struct {
	Name     string
	Provider llm.Provider
}

// NamedSTT is an STT provider with the name it was configured under.
type NamedSTT struct {
	Name     string
	Provider stt.Provider
}

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	// LLM scores transcripts. Nil answers every analysis with the demo scorecard.
	LLM llm.Provider

	// LLMFallbacks are tried in order behind LLM.
	LLMFallbacks []NamedLLM

	// STT transcribes live calls.
	STT stt.Provider

	// STTFallbacks open recognizer sessions when STT cannot.
	STTFallbacks []NamedSTT
}

// App owns all subsystem lifetimes of the ClosePath server.
type App struct {
	cfg       *config.Config
	providers *Providers
	version   string

	metrics  *observe.Metrics
	logLevel *slog.LevelVar
	now      func() time.Time

	// Subsystems, initialised in New and torn down in Shutdown.
	llm       llm.Provider
	stt       stt.Provider
	client    analysis.Client
	service   *analyzer.Service
	publisher *events.Publisher
	calls     *session.Manager
	mcp       *mcpserver.Server
	handler   http.Handler
	server    *http.Server

	eventWriter events.Writer
	draining    atomic.Bool

	// closers are called in order during Shutdown.
	closers []func(context.Context) error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics replaces the global metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithEventWriter injects a Kafka writer instead of creating one from config.
func WithEventWriter(w events.Writer) Option {
	return func(a *App) { a.eventWriter = w }
}

// WithAnalysisClient injects the client calls use to obtain scorecards.
func WithAnalysisClient(c analysis.Client) Option {
	return func(a *App) { a.client = c }
}

// WithLogLevel hands the app the level variable behind the process logger
// so config reloads can change verbosity.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithClock replaces time.Now for call ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		version:   "dev",
		now:       time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Analysis ──────────────────────────────────────────────────────
	a.llm = a.buildLLM()
	a.service = analyzer.New(a.llm,
		analyzer.WithMaxTokens(cfg.Analysis.MaxTokens),
		analyzer.WithMaxQuestions(cfg.Analysis.MaxQuestions),
		analyzer.WithMetrics(a.metrics),
		analyzer.WithProviderName(cfg.Providers.LLM.Name),
		analyzer.WithClock(a.now),
	)
	if a.client == nil {
		a.client = a.buildClient()
	}

	policy, err := trigger.New(string(cfg.Analysis.Trigger.Policy), cfg.Analysis.Trigger.Keywords, cfg.Analysis.Trigger.Cadence)
	if err != nil {
		return nil, fmt.Errorf("app: init trigger: %w", err)
	}

	// ── 2. Call events ───────────────────────────────────────────────────
	pubOpts := []events.Option{events.WithMetrics(a.metrics), events.WithClock(a.now)}
	if a.eventWriter != nil {
		pubOpts = append(pubOpts, events.WithWriter(a.eventWriter))
	}
	a.publisher = events.New(events.Config{
		Enabled: cfg.Events.Enabled,
		Brokers: cfg.Events.Brokers,
		Topic:   cfg.Events.Topic,
	}, pubOpts...)

	// ── 3. Calls ─────────────────────────────────────────────────────────
	a.stt = a.buildSTT()
	a.calls = session.NewManager(session.Config{
		Client:  a.client,
		Trigger: policy,
		STT:     a.stt,
		StreamConfig: stt.StreamConfig{
			SampleRate: cfg.Speech.SampleRate,
			Channels:   1,
			Language:   cfg.Speech.Language,
			Keywords:   keywordBoosts(cfg.Glossary.Terms),
		},
		Matcher:          phonetic.New(),
		Glossary:         cfg.Glossary.Terms,
		Window:           cfg.Analysis.Window,
		MaxQuestions:     cfg.Analysis.MaxQuestions,
		SilenceThreshold: cfg.Speech.SilenceThreshold,
		RestartDelay:     cfg.Speech.RestartDelay,
		DemoOptions:      demoOptions(cfg.Demo),
		Observers:        []session.Observer{a.publisher},
		Metrics:          a.metrics,
		Now:              a.now,
	})

	// ── 4. MCP tools ─────────────────────────────────────────────────────
	a.mcp = mcpserver.New(a.service, a.calls,
		mcpserver.WithMetrics(a.metrics),
		mcpserver.WithClock(a.now),
		mcpserver.WithVersion(a.version),
	)

	// ── 5. HTTP surface ──────────────────────────────────────────────────
	a.handler = a.buildHandler()
	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}
	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Calls end before events are flushed so call.ended reaches Kafka.
	a.closers = append(a.closers,
		a.server.Shutdown,
		a.calls.Shutdown,
		a.publisher.Close,
	)

	slog.Info("app: initialised",
		"listen_addr", addr,
		"llm", nameOr(cfg.Providers.LLM.Name, "demo"),
		"llm_fallbacks", len(providers.LLMFallbacks),
		"stt", nameOr(cfg.Providers.STT.Name, "none"),
		"stt_fallbacks", len(providers.STTFallbacks),
		"remote_analysis", cfg.Analysis.Endpoint != "",
		"events", a.publisher.Enabled(),
	)
	return a, nil
}

// buildLLM wraps the configured LLM and its fallbacks in per-provider circuit
// breakers. Returns nil when no LLM is configured.
func (a *App) buildLLM() llm.Provider {
	if a.providers.LLM == nil {
		return nil
	}
	fb := resilience.NewLLMFallback(a.providers.LLM, nameOr(a.cfg.Providers.LLM.Name, "llm"), resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, to resilience.State) {
				a.metrics.RecordCircuitTransition(context.Background(), name, to.String())
			},
		},
	})
	for _, f := range a.providers.LLMFallbacks {
		fb.AddFallback(f.Name, f.Provider)
	}
	return fb
}

// buildSTT wraps the configured recognizer and its fallbacks the same way.
// Returns nil when no STT is configured so live calls report the missing
// capability.
func (a *App) buildSTT() stt.Provider {
	if a.providers.STT == nil {
		return nil
	}
	fb := resilience.NewSTTFallback(a.providers.STT, nameOr(a.cfg.Providers.STT.Name, "stt"),
		resilience.FallbackConfig{
			CircuitBreaker: resilience.CircuitBreakerConfig{
				OnStateChange: func(name string, to resilience.State) {
					a.metrics.RecordCircuitTransition(context.Background(), name, to.String())
				},
			},
		},
		resilience.WithSwitchHook(func(from, to string) {
			if from == "" {
				return
			}
			slog.Warn("app: speech recognition switched backend", "from", from, "to", to)
			a.metrics.RecordProviderRequest(context.Background(), to, "stt", "failover")
		}),
	)
	for _, f := range a.providers.STTFallbacks {
		fb.AddFallback(f.Name, f.Provider)
	}
	return fb
}

func (a *App) buildClient() analysis.Client {
	if a.cfg.Analysis.Endpoint == "" {
		return analysis.NewLocalClient(a.service)
	}
	var opts []analysis.HTTPOption
	if a.cfg.Analysis.Timeout > 0 {
		opts = append(opts, analysis.WithHTTPClient(&http.Client{Timeout: a.cfg.Analysis.Timeout}))
	}
	return analysis.NewHTTPClient(a.cfg.Analysis.Endpoint, opts...)
}

func (a *App) buildHandler() http.Handler {
	mux := http.NewServeMux()

	api.New(a.calls,
		api.WithClock(a.now),
		api.WithOriginPatterns(a.cfg.Server.AllowedOrigins...),
	).Register(mux)
	mux.Handle("/api/analyze", analyzer.NewHandler(a.service))
	mux.Handle("/mcp", a.mcp.Handler())

	health.New(
		health.Checker{Name: "calls", Check: func(context.Context) error {
			if a.draining.Load() {
				return errors.New("shutting down")
			}
			return nil
		}},
		health.Checker{Name: "kafka", Check: a.publisher.Ping},
	).Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(a.metrics)(mux)
}

// Handler returns the root HTTP handler with all routes and middleware.
func (a *App) Handler() http.Handler { return a.handler }

// Calls returns the call manager.
func (a *App) Calls() *session.Manager { return a.calls }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP until ctx is cancelled or the listener fails. It does not
// tear down calls; call Shutdown afterwards.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	slog.Info("app: listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.draining.Store(true)
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(sctx)
	})
	return g.Wait()
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable parts of a changed config file. It
// is the callback passed to [config.NewWatcher].
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("app: log level changed", "level", d.NewLogLevel)
	}
	if d.GlossaryChanged {
		a.calls.SetGlossary(new.Glossary.Terms)
		slog.Info("app: glossary reloaded", "added", d.AddedTerms, "removed", d.RemovedTerms)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("app: config changes need a restart", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems: the HTTP server stops accepting
// requests, every call ends, and queued events are flushed. It respects the
// context deadline: if ctx expires, remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.draining.Store(true)
		slog.Info("app: shutting down", "closers", len(a.closers))

		var errs []error
		for i, closer := range a.closers {
			if err := ctx.Err(); err != nil {
				slog.Warn("app: shutdown deadline exceeded", "remaining", len(a.closers)-i)
				errs = append(errs, err)
				break
			}
			if err := closer(ctx); err != nil {
				slog.Warn("app: closer error", "index", i, "err", err)
				errs = append(errs, err)
			}
		}
		shutdownErr = errors.Join(errs...)

		slog.Info("app: shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func demoOptions(cfg config.DemoConfig) []demo.Option {
	if cfg.Interval <= 0 {
		return nil
	}
	return []demo.Option{demo.WithInterval(cfg.Interval)}
}

func keywordBoosts(terms []string) []types.KeywordBoost {
	if len(terms) == 0 {
		return nil
	}
	boosts := make([]types.KeywordBoost, len(terms))
	for i, t := range terms {
		boosts[i] = types.KeywordBoost{Keyword: t, Boost: 2}
	}
	return boosts
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
