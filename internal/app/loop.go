package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/pinocchio/internal/journal"
	"github.com/MrWong99/pinocchio/internal/listen"
	"github.com/MrWong99/pinocchio/internal/observe"
	"github.com/MrWong99/pinocchio/pkg/provider/stt"
)

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run connects to the audio device, calibrates the listener and runs the
// voice loop until an exit command is spoken or ctx is cancelled.
//
// Run returns nil after an exit command (the farewell has been spoken) and
// ctx.Err() after cancellation. Connection failures wrap
// [audio.ErrDeviceUnavailable]. A failing iteration never ends the loop;
// only a closed capture stream does.
func (a *App) Run(ctx context.Context) error {
	if err := a.connect(ctx); err != nil {
		return err
	}
	a.calibrate(ctx)

	slog.Info("listening", "session_id", a.sessionID, "language", a.cfg.Listen.Language)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		exit, err := a.iterate(ctx)
		if err != nil {
			return err
		}
		if exit {
			return nil
		}
	}
}

// connect opens the audio device and builds the listener.
func (a *App) connect(ctx context.Context) error {
	device, _ := a.cfg.Providers.Audio.Options["device"].(string)
	conn, err := a.providers.Audio.Connect(ctx, device)
	if err != nil {
		return fmt.Errorf("app: connect audio: %w", err)
	}
	a.connMu.Lock()
	a.conn = conn
	a.listener = listen.New(conn, a.providers.VAD, listenConfig(a.cfg.Listen))
	a.connMu.Unlock()
	slog.Info("audio connected", "device", device, "format", conn.InputFormat())
	return nil
}

// calibrate measures ambient noise. Failures keep the configured minimum.
func (a *App) calibrate(ctx context.Context) {
	d := a.cfg.Listen.Calibration
	if d <= 0 {
		return
	}
	slog.Info("calibrating for ambient noise; please stay quiet", "duration", d)
	threshold, err := a.listener.Calibrate(ctx, d)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("calibration failed; using minimum threshold", "err", err, "threshold", a.listener.Threshold())
		}
		return
	}
	a.metrics.ListenThreshold.Record(ctx, threshold)
	slog.Info("calibration complete", "threshold", threshold)
}

// iterate runs one turn and applies the backoff of its error class. It
// returns exit=true once an exit command was handled and a non-nil error only
// when the loop cannot continue.
func (a *App) iterate(ctx context.Context) (exit bool, err error) {
	defer a.heartbeat.Beat()
	defer func() {
		if r := recover(); r != nil {
			observe.Logger(ctx).Error("iteration failed", "stage", "panic", "panic", r, "stack", string(debug.Stack()))
			a.metrics.RecordInteraction(ctx, observe.OutcomeError)
			exit, err = false, nil
			_ = a.sleep(ctx, a.cfg.Loop.ErrorBackoff)
		}
	}()

	a.turn++
	ctx, span := observe.StartSpan(ctx, "pinocchio.turn", trace.WithAttributes(
		attribute.String("session_id", a.sessionID),
		attribute.Int("turn", a.turn),
	))
	defer span.End()

	entry, res := a.runTurn(ctx)
	a.metrics.RecordInteraction(ctx, entry.Outcome)
	span.SetAttributes(attribute.String("outcome", entry.Outcome))
	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, entry.Outcome)
	}

	if res.fatal {
		return false, res.err
	}
	if entry.Outcome != observe.OutcomeTimeout && ctx.Err() == nil {
		a.record(ctx, entry)
	}
	if res.backoff > 0 {
		if err := a.sleep(ctx, res.backoff); err != nil {
			return false, nil
		}
	}
	return entry.Outcome == observe.OutcomeExit, nil
}

// turnResult tells iterate how to continue after a turn.
type turnResult struct {
	err     error
	backoff time.Duration
	fatal   bool
}

// runTurn executes listen, transcribe, detect, transform and speak once.
func (a *App) runTurn(ctx context.Context) (journal.Entry, turnResult) {
	log := observe.Logger(ctx)
	entry := journal.Entry{Time: time.Now().UTC(), SessionID: a.sessionID, Turn: a.turn}
	unexpected := func(stage string, err error) (journal.Entry, turnResult) {
		entry.Outcome = observe.OutcomeError
		entry.Error = err.Error()
		if ctx.Err() != nil {
			return entry, turnResult{err: err}
		}
		log.Error("iteration failed", "stage", stage, "err", err)
		return entry, turnResult{err: err, backoff: a.cfg.Loop.ErrorBackoff}
	}

	// ── Listen ───────────────────────────────────────────────────────────
	if a.echo.Swap(false) {
		n := a.listener.Flush()
		log.Debug("discarded playback echo", "frames", n)
	}
	start := time.Now()
	utt, err := a.listener.Listen(ctx)
	switch {
	case errors.Is(err, listen.ErrWaitTimeout):
		entry.Outcome = observe.OutcomeTimeout
		log.Debug("no speech within wait timeout")
		return entry, turnResult{}
	case errors.Is(err, listen.ErrSourceClosed):
		entry.Outcome = observe.OutcomeError
		return entry, turnResult{err: fmt.Errorf("app: listen: %w", err), fatal: true}
	case err != nil:
		return unexpected("listen", err)
	}
	entry.ListenMs = utt.Duration().Milliseconds()
	a.metrics.ListenDuration.Record(ctx, utt.Duration().Seconds())
	log.Debug("captured utterance", "duration", utt.Duration(), "truncated", utt.Truncated, "waited", time.Since(start))

	// ── Transcribe ───────────────────────────────────────────────────────
	start = time.Now()
	tr, err := a.providers.STT.Transcribe(ctx, utt.Audio, stt.Config{Language: a.cfg.Listen.Language})
	entry.STTMs = time.Since(start).Milliseconds()
	observe.ObserveSince(ctx, a.metrics.STTDuration, start)
	a.metrics.RecordProviderRequest(ctx, a.cfg.Providers.STT.Name, "stt", requestStatus(err))
	switch {
	case errors.Is(err, stt.ErrUnrecognized):
		entry.Outcome = observe.OutcomeUnrecognized
		log.Info("could not understand audio")
		return entry, turnResult{}
	case err != nil && ctx.Err() != nil:
		return unexpected("transcribe", err)
	case err != nil:
		entry.Outcome = observe.OutcomeServiceError
		entry.Error = err.Error()
		a.metrics.RecordProviderError(ctx, a.cfg.Providers.STT.Name, "stt")
		log.Error("speech recognition service failed", "err", err, "retry_in", a.cfg.Loop.ServiceBackoff)
		return entry, turnResult{err: err, backoff: a.cfg.Loop.ServiceBackoff}
	}
	text := normalizeText(tr.Text)
	entry.Heard = text
	log.Info("you said", "text", text, "confidence", tr.Confidence)

	// ── Exit command ─────────────────────────────────────────────────────
	t := a.transformer.Load()
	if t.isExit(text) {
		entry.Outcome = observe.OutcomeExit
		entry.Response = ExitFarewell
		log.Info("exit command received", "command", text)
		if err := a.Speak(ctx, ExitFarewell); err != nil && ctx.Err() == nil {
			log.Warn("failed to speak farewell", "err", err)
		}
		return entry, turnResult{}
	}

	// ── Detect and transform ─────────────────────────────────────────────
	start = time.Now()
	lang, err := a.detector.Detect(text)
	if err != nil {
		lang = a.cfg.Language.Default
		log.Debug("language detection failed; using default", "err", err, "language", lang)
	}
	out := t.dispatcher.Transform(text, lang)
	observe.ObserveSince(ctx, a.metrics.TransformDuration, start, observe.Attr("route", string(out.Route)))
	a.metrics.RecordTransform(ctx, string(out.Route), lang)
	entry.Language = lang
	entry.Route = string(out.Route)
	entry.Response = out.Text
	log.Info("pinocchio responds", "language", lang, "route", out.Route, "text", out.Text)

	// ── Speak ────────────────────────────────────────────────────────────
	start = time.Now()
	if err := a.Speak(ctx, out.Text); err != nil {
		return unexpected("speak", err)
	}
	entry.TTSMs = time.Since(start).Milliseconds()
	entry.Outcome = observe.OutcomeResponded
	return entry, turnResult{}
}

// Speak synthesizes text with the current voice and plays it, blocking until
// playback ends.
func (a *App) Speak(ctx context.Context, text string) error {
	a.connMu.Lock()
	conn := a.conn
	a.connMu.Unlock()
	if conn == nil {
		return errors.New("app: speak: audio not connected")
	}

	start := time.Now()
	frame, err := a.providers.TTS.Synthesize(ctx, text, a.Voice())
	observe.ObserveSince(ctx, a.metrics.TTSDuration, start)
	a.metrics.RecordProviderRequest(ctx, a.cfg.Providers.TTS.Name, "tts", requestStatus(err))
	if err != nil {
		a.metrics.RecordProviderError(ctx, a.cfg.Providers.TTS.Name, "tts")
		return fmt.Errorf("app: synthesize: %w", err)
	}

	start = time.Now()
	a.echo.Store(true)
	if err := conn.Play(ctx, frame); err != nil {
		return fmt.Errorf("app: play: %w", err)
	}
	observe.ObserveSince(ctx, a.metrics.PlaybackDuration, start)
	return nil
}

// Farewell speaks text on a fresh context bounded by timeout, for use after
// the loop's context has been cancelled.
func (a *App) Farewell(timeout time.Duration, text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return a.Speak(ctx, text)
}

// record writes entry to the journal. Failures are logged and do not pause
// the loop beyond the normal error backoff.
func (a *App) record(ctx context.Context, entry journal.Entry) {
	if err := a.journal.Record(ctx, entry); err != nil {
		observe.Logger(ctx).Error("iteration failed", "stage", "journal", "err", err)
		_ = a.sleep(ctx, a.cfg.Loop.ErrorBackoff)
	}
}

// requestStatus labels a provider call for the request counter.
func requestStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, stt.ErrUnrecognized):
		return "unrecognized"
	default:
		return "error"
	}
}
