// Package app wires the Pinocchio subsystems into a running voice loop.
//
// The App struct owns the full lifecycle: New builds the lexicon, language
// detector, confusion transforms and journal; Run connects the audio device
// and executes the listen, transcribe, confuse and speak loop; Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithLexicon,
// WithJournal, WithRandom, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/pinocchio/internal/config"
	"github.com/MrWong99/pinocchio/internal/confusion"
	"github.com/MrWong99/pinocchio/internal/health"
	"github.com/MrWong99/pinocchio/internal/journal"
	journalpg "github.com/MrWong99/pinocchio/internal/journal/postgres"
	"github.com/MrWong99/pinocchio/internal/langdetect"
	"github.com/MrWong99/pinocchio/internal/lexicon"
	lexiconpg "github.com/MrWong99/pinocchio/internal/lexicon/postgres"
	"github.com/MrWong99/pinocchio/internal/lexicon/wordnet"
	"github.com/MrWong99/pinocchio/internal/listen"
	"github.com/MrWong99/pinocchio/internal/observe"
	"github.com/MrWong99/pinocchio/internal/sentence"
	"github.com/MrWong99/pinocchio/pkg/audio"
	"github.com/MrWong99/pinocchio/pkg/provider/stt"
	"github.com/MrWong99/pinocchio/pkg/provider/tts"
	"github.com/MrWong99/pinocchio/pkg/provider/vad"
)

// Spoken farewells.
const (
	ExitFarewell      = "It is not untrue that our conversation might not be continuing, though I cannot say that we are not not parting ways."
	InterruptFarewell = "It is not certain that our interaction has not concluded."
)

// loopStallTimeout is how long the loop may go without finishing an
// iteration before readiness fails.
const loopStallTimeout = 2 * time.Minute

// Providers holds one interface value per provider slot. Populated by
// main.go via the config registry; STT and TTS are usually fallback chains.
type Providers struct {
	STT   stt.Provider
	TTS   tts.Provider
	VAD   vad.Engine
	Audio audio.Platform
}

// App owns all subsystem lifetimes and runs the Pinocchio voice loop.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems; initialised in New, torn down in Shutdown.
	lex       lexicon.Lexicon
	segmenter confusion.Segmenter
	detector  langdetect.Detector
	journal   journal.Store
	metrics   *observe.Metrics
	rnd       confusion.Random
	heartbeat *health.Heartbeat
	sleep     func(ctx context.Context, d time.Duration) error

	// Hot-reloadable state.
	transformer atomic.Pointer[transformer]
	voice       atomic.Pointer[tts.VoiceProfile]

	sessionID string
	turn      int

	connMu   sync.Mutex
	conn     audio.Connection
	listener *listen.Listener

	// echo is set once playback started and cleared when the next listen
	// discards the frames captured meanwhile.
	echo atomic.Bool

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLexicon injects a lexicon instead of loading the configured source.
func WithLexicon(l lexicon.Lexicon) Option {
	return func(a *App) { a.lex = l }
}

// WithSegmenter injects a sentence segmenter instead of the Punkt model.
func WithSegmenter(s confusion.Segmenter) Option {
	return func(a *App) { a.segmenter = s }
}

// WithDetector injects a language detector.
func WithDetector(d langdetect.Detector) Option {
	return func(a *App) { a.detector = d }
}

// WithJournal injects a journal store instead of opening the configured one.
func WithJournal(j journal.Store) Option {
	return func(a *App) { a.journal = j }
}

// WithMetrics injects a metrics instance instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithRandom injects the random source of the confusion transforms. It
// overrides confusion.seed.
func WithRandom(r confusion.Random) Option {
	return func(a *App) { a.rnd = r }
}

// WithSleep replaces the backoff pause between failed iterations.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(a *App) { a.sleep = fn }
}

// WithSessionID fixes the journal session identifier.
func WithSessionID(id string) Option {
	return func(a *App) { a.sessionID = id }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// New does not touch the audio device; Run connects it.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.STT == nil || providers.TTS == nil || providers.VAD == nil || providers.Audio == nil {
		return nil, errors.New("app: STT, TTS, VAD and audio providers are required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		sleep:     sleepCtx,
		heartbeat: health.NewHeartbeat(loopStallTimeout),
	}
	for _, o := range opts {
		o(a)
	}
	if a.sessionID == "" {
		a.sessionID = journal.NewSessionID()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.rnd == nil {
		a.rnd = confusion.NewRandom(cfg.Confusion.Seed)
	}

	// ── 1. Lexicon ───────────────────────────────────────────────────────
	if err := a.initLexicon(ctx); err != nil {
		return nil, fmt.Errorf("app: init lexicon: %w", err)
	}

	// ── 2. Sentence segmenter and language detector ─────────────────────
	if err := a.initLanguage(); err != nil {
		return nil, fmt.Errorf("app: init language: %w", err)
	}

	// ── 3. Confusion transforms and voice ───────────────────────────────
	a.transformer.Store(newTransformer(cfg.Confusion, a.segmenter, a.lex, a.rnd))
	a.voice.Store(voiceProfile(cfg.Voice, cfg.Providers.TTS.Name))

	// ── 4. Journal ───────────────────────────────────────────────────────
	if err := a.initJournal(ctx); err != nil {
		return nil, fmt.Errorf("app: init journal: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initLexicon loads the configured synonym source.
func (a *App) initLexicon(ctx context.Context) error {
	if a.lex != nil {
		return nil
	}
	switch a.cfg.Lexicon.Source {
	case config.LexiconWordNet:
		idx, stats, err := wordnet.Load(a.cfg.Lexicon.Path)
		if err != nil {
			return err
		}
		slog.Info("loaded wordnet lexicon", "path", a.cfg.Lexicon.Path, "synsets", idx.Len(), "stats", stats)
		a.lex = idx

	case config.LexiconPostgres:
		store, err := lexiconpg.NewStore(ctx, a.cfg.Lexicon.PostgresDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		idx, err := store.LoadIndex(ctx)
		if err != nil {
			return err
		}
		if idx.Len() == 0 {
			slog.Warn("postgres lexicon is empty; run pinocchio-lexicon import first")
		}
		slog.Info("loaded postgres lexicon", "synsets", idx.Len())
		a.lex = idx

	default:
		a.lex = lexicon.Builtin()
		slog.Info("using builtin lexicon", "synsets", lexicon.Builtin().Len())
	}
	return nil
}

// initLanguage sets up sentence segmentation and language detection.
func (a *App) initLanguage() error {
	if a.segmenter == nil {
		seg, err := sentence.New()
		if err != nil {
			return err
		}
		a.segmenter = seg
	}
	if a.detector == nil {
		var opts []langdetect.Option
		if len(a.cfg.Language.Allow) > 0 {
			opts = append(opts, langdetect.WithAllow(a.cfg.Language.Allow...))
		}
		if a.cfg.Language.MinConfidence > 0 {
			opts = append(opts, langdetect.WithMinConfidence(a.cfg.Language.MinConfidence))
		}
		det, err := langdetect.New(opts...)
		if err != nil {
			return err
		}
		a.detector = det
	}
	return nil
}

// initJournal opens the configured journal store.
func (a *App) initJournal(ctx context.Context) error {
	if a.journal != nil {
		return nil
	}
	switch {
	case a.cfg.Journal.Path != "":
		fs, err := journal.NewFileStore(a.cfg.Journal.Path)
		if err != nil {
			return err
		}
		a.journal = fs
		slog.Info("journal enabled", "path", a.cfg.Journal.Path, "session_id", a.sessionID)
	case a.cfg.Journal.PostgresDSN != "":
		store, err := journalpg.NewStore(ctx, a.cfg.Journal.PostgresDSN)
		if err != nil {
			return err
		}
		a.journal = store
		slog.Info("journal enabled", "backend", "postgres", "session_id", a.sessionID)
	default:
		a.journal = journal.Nop{}
	}
	a.closers = append(a.closers, a.journal.Close)
	return nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// SessionID returns the journal session identifier of this run.
func (a *App) SessionID() string { return a.sessionID }

// Voice returns the voice profile currently used for responses.
func (a *App) Voice() tts.VoiceProfile { return *a.voice.Load() }

// Checkers returns the readiness checks of the running app.
func (a *App) Checkers() []health.Checker {
	return []health.Checker{
		{Name: "audio", Check: func(context.Context) error {
			a.connMu.Lock()
			defer a.connMu.Unlock()
			if a.conn == nil {
				return errors.New("audio device not connected")
			}
			return nil
		}},
		{Name: "journal", Check: func(ctx context.Context) error {
			return a.journal.Ping(ctx)
		}},
		a.heartbeat.Checker("loop"),
	}
}

// ApplyConfig applies the hot-reloadable parts of a changed config.
func (a *App) ApplyConfig(cfg *config.Config, diff config.ConfigDiff) {
	if diff.VoiceChanged {
		a.voice.Store(voiceProfile(cfg.Voice, a.cfg.Providers.TTS.Name))
		slog.Info("voice updated", "voice_id", cfg.Voice.VoiceID, "speed_factor", cfg.Voice.SpeedFactor)
	}
	if diff.ConfusionChanged {
		rnd := a.rnd
		if cfg.Confusion.Seed != a.cfg.Confusion.Seed {
			rnd = confusion.NewRandom(cfg.Confusion.Seed)
		}
		a.transformer.Store(newTransformer(cfg.Confusion, a.segmenter, a.lex, rnd))
		slog.Info("confusion settings updated")
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		// Disconnect audio first.
		a.connMu.Lock()
		conn := a.conn
		a.conn = nil
		a.connMu.Unlock()
		if conn != nil {
			if err := conn.Disconnect(); err != nil {
				slog.Warn("audio disconnect error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// voiceProfile converts a config.VoiceConfig to tts.VoiceProfile.
func voiceProfile(vc config.VoiceConfig, provider string) *tts.VoiceProfile {
	return &tts.VoiceProfile{
		ID:          vc.VoiceID,
		Name:        vc.Name,
		Provider:    provider,
		SpeedFactor: vc.SpeedFactor,
	}
}

// listenConfig maps the listen section onto [listen.Config].
func listenConfig(lc config.ListenConfig) listen.Config {
	c := listen.DefaultConfig()
	c.WaitTimeout = lc.WaitTimeout
	c.PhraseLimit = lc.PhraseLimit
	c.Pause = lc.Pause
	c.MinThreshold = lc.MinThreshold
	c.DynamicRatio = lc.DynamicRatio
	return c
}

// sleepCtx pauses for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
