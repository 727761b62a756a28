package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/closepath/internal/analysis"
	"github.com/MrWong99/closepath/internal/demo"
	"github.com/MrWong99/closepath/internal/observe"
	"github.com/MrWong99/closepath/internal/transcript"
	"github.com/MrWong99/closepath/internal/trigger"
	"github.com/MrWong99/closepath/pkg/provider/stt"
)

// defaultRetain is how many ended calls stay available for export.
const defaultRetain = 64

// Config holds the dependencies shared by all calls of a [Manager].
type Config struct {
	// Client obtains scorecards. Nil disables analysis.
	Client analysis.Client

	// Trigger decides after each append whether to request an analysis.
	Trigger trigger.Policy

	// STT is the recognizer used by live calls. Nil makes live calls report
	// that speech recognition is unavailable.
	STT          stt.Provider
	StreamConfig stt.StreamConfig

	// Matcher and Glossary drive transcript correction of live speech.
	Matcher  transcript.PhoneticMatcher
	Glossary []string

	// Window is the number of recent utterances sent per analysis request.
	Window int

	// MaxQuestions caps the suggested questions kept on the scorecard.
	MaxQuestions int

	SilenceThreshold time.Duration
	RestartDelay     time.Duration
	DemoOptions      []demo.Option

	Observers []Observer
	Metrics   *observe.Metrics

	// Retain is the number of ended calls kept for lookup. Default: 64.
	Retain int

	// Now replaces time.Now.
	Now func() time.Time
}

func (c *Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Manager owns all calls of the process. It is safe for concurrent use.
type Manager struct {
	cfg    Config
	root   context.Context
	cancel context.CancelFunc

	analyses sync.WaitGroup

	mu       sync.Mutex
	calls    map[string]*Call
	retired  []string
	glossary []string
	closed   bool
}

// NewManager returns a Manager for cfg.
func NewManager(cfg Config) *Manager {
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = analysis.DefaultMaxQuestions
	}
	if cfg.Window <= 0 {
		cfg.Window = analysis.DefaultWindow
	}
	if cfg.Retain <= 0 {
		cfg.Retain = defaultRetain
	}
	root, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		root:     root,
		cancel:   cancel,
		calls:    make(map[string]*Call),
		glossary: slices.Clone(cfg.Glossary),
	}
}

// Start begins a new call with fresh state and returns it.
func (m *Manager) Start(mode Mode) (*Call, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrShutdown
	}

	id := m.newID()
	c := newCall(m.root, id, mode, &m.cfg, slices.Clone(m.glossary), &m.analyses)
	m.calls[id] = c
	go m.retireWhenDone(c)
	return c, nil
}

// newID returns call_<unix ms>, bumped until unique. Must hold m.mu.
func (m *Manager) newID() string {
	ms := m.cfg.now().UnixMilli()
	for {
		id := fmt.Sprintf("call_%d", ms)
		if _, taken := m.calls[id]; !taken {
			return id
		}
		ms++
	}
}

func (m *Manager) retireWhenDone(c *Call) {
	<-c.Done()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retired = append(m.retired, c.id)
	for len(m.retired) > m.cfg.Retain {
		delete(m.calls, m.retired[0])
		m.retired = m.retired[1:]
	}
}

// Get returns the call with id, which may have ended.
func (m *Manager) Get(id string) (*Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCallNotFound, id)
	}
	return c, nil
}

// End ends the call with id and returns its final snapshot.
func (m *Manager) End(id string) (Snapshot, error) {
	c, err := m.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return c.End()
}

// Active returns the number of calls that have not ended.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		select {
		case <-c.Done():
		default:
			n++
		}
	}
	return n
}

// SetGlossary replaces the correction glossary for calls started afterwards.
func (m *Manager) SetGlossary(terms []string) {
	m.mu.Lock()
	m.glossary = slices.Clone(terms)
	m.mu.Unlock()
	slog.Info("session: glossary updated", "terms", len(terms))
}

// Shutdown ends every call and waits for in-flight analyses until ctx is
// done. Analyses still running are then cancelled.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	calls := make([]*Call, 0, len(m.calls))
	for _, c := range m.calls {
		calls = append(calls, c)
	}
	m.mu.Unlock()

	for _, c := range calls {
		_, _ = c.End()
	}

	waited := make(chan struct{})
	go func() {
		m.analyses.Wait()
		close(waited)
	}()
	defer m.cancel()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session: shutdown: %w", ctx.Err())
	}
}
