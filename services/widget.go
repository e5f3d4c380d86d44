package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"lucy-support-gateway/internal/backend"
	"lucy-support-gateway/internal/history"
	"lucy-support-gateway/internal/telemetry"
	"lucy-support-gateway/models"
)

// DevClientKey is the fallback key when the host page does not inject one.
const DevClientKey = "dev-client-key"

// widgetApology is the fixed assistant turn shown when a send fails. It is
// presentation-only: never written to persisted history.
const widgetApology = "Sorry, I'm having trouble connecting."

// ErrVoiceDisabled is returned when a voice send reaches a widget mounted
// without the voice capability.
var ErrVoiceDisabled = errors.New("voice capability not enabled for this widget")

// WidgetCapabilities selects the optional widget features. Historically these
// were two forked scripts; here they are flags on one component.
type WidgetCapabilities struct {
	Voice        bool `json:"voice"`
	ManualLocale bool `json:"manual_locale"`
}

// WidgetOptions configures one widget mount. Language and Sector are the
// fixed hints used when ManualLocale is off.
type WidgetOptions struct {
	ClientKey    string
	Session      string
	Capabilities WidgetCapabilities
	Language     string
	Sector       string
	ASRLanguage  string
}

// Widget is one mounted chat widget: an immutable configuration snapshot
// plus mutable session state. The window toggles closed <-> open; it is
// shown and hidden, never torn down, so the transcript survives toggles.
type Widget struct {
	mu      sync.Mutex
	api     *backend.Client
	store   history.Store
	log     *slog.Logger
	metrics *telemetry.Metrics

	opts       WidgetOptions
	cfg        models.WidgetConfig
	open       bool
	transcript []models.ChatMessage
}

// VoiceResult is the outcome of a voice exchange: the transcribed text, the
// reply, and optionally the synthesized reply audio.
type VoiceResult struct {
	Text   string `json:"text"`
	Reply  string `json:"reply"`
	Speech []byte `json:"-"`
}

// NewWidget mounts a widget. It fetches the appearance config for the client
// key and merges it over the defaults; a fetch failure keeps the defaults,
// logs, and never blocks the mount. If no history is persisted yet the
// welcome message becomes the sole assistant turn (and is not persisted).
func NewWidget(ctx context.Context, api *backend.Client, store history.Store, metrics *telemetry.Metrics, log *slog.Logger, opts WidgetOptions) *Widget {
	if opts.ClientKey == "" {
		opts.ClientKey = DevClientKey
	}
	if opts.Language == "" {
		opts.Language = "am"
	}
	if opts.Sector == "" {
		opts.Sector = "admin_defined"
	}
	if opts.ASRLanguage == "" {
		opts.ASRLanguage = "amh"
	}

	cfg := models.DefaultWidgetConfig()
	if server, err := api.WidgetConfig(ctx, opts.ClientKey); err != nil {
		log.Warn("widget config fetch failed, keeping defaults", "key", opts.ClientKey, "error", err)
	} else {
		cfg = cfg.Merge(server)
	}

	w := &Widget{
		api:     api,
		store:   store,
		log:     log,
		metrics: metrics,
		opts:    opts,
		cfg:     cfg,
	}

	msgs, err := store.Load(ctx, opts.Session)
	if err != nil {
		log.Warn("history load failed", "session", opts.Session, "error", err)
		msgs = nil
	}
	if len(msgs) > 0 {
		w.transcript = msgs
	} else {
		w.transcript = []models.ChatMessage{{Role: models.RoleAssistant, Content: cfg.WelcomeMessage}}
	}
	return w
}

// Config returns the merged appearance snapshot.
func (w *Widget) Config() models.WidgetConfig { return w.cfg }

// Capabilities returns the mount's feature flags.
func (w *Widget) Capabilities() WidgetCapabilities { return w.opts.Capabilities }

// Toggle flips the window between closed and open and reports the new state.
func (w *Widget) Toggle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open = !w.open
	return w.open
}

// Close hides the window. Reachable from open via the explicit close control.
func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open = false
}

// IsOpen reports whether the window is showing.
func (w *Widget) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// Transcript returns a copy of the visible transcript.
func (w *Widget) Transcript() []models.ChatMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.ChatMessage, len(w.transcript))
	copy(out, w.transcript)
	return out
}

// FormatContext serializes history as a flat "role: content" transcript,
// one line per turn, the shape the support endpoint expects.
func FormatContext(msgs []models.ChatMessage) string {
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = m.Role + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

// Send relays one user message using the mount's fixed language and sector
// hints. Empty input is a no-op: the transcript is untouched and no request
// is issued. The user turn is echoed into the transcript before the round
// trip; on success the reply is appended and both turns are persisted (then
// truncated to the history cap), on failure a fixed apology is appended to
// the transcript only.
func (w *Widget) Send(ctx context.Context, text string) (string, error) {
	return w.send(ctx, text, w.opts.Language, w.opts.Sector)
}

// SendLocalized is Send with caller-chosen hints. Without the ManualLocale
// capability the overrides are ignored and the fixed hints apply.
func (w *Widget) SendLocalized(ctx context.Context, text, language, sector string) (string, error) {
	if !w.opts.Capabilities.ManualLocale || language == "" {
		language = w.opts.Language
	}
	if !w.opts.Capabilities.ManualLocale || sector == "" {
		sector = w.opts.Sector
	}
	return w.send(ctx, text, language, sector)
}

func (w *Widget) send(ctx context.Context, text, language, sector string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.transcript = append(w.transcript, models.ChatMessage{Role: models.RoleUser, Content: text})

	// Context is the previously persisted history, excluding the turn just
	// echoed above.
	prior, err := w.store.Load(ctx, w.opts.Session)
	if err != nil {
		w.log.Warn("history load failed", "session", w.opts.Session, "error", err)
		prior = nil
	}

	start := time.Now()
	resp, err := w.api.Support(ctx, w.opts.ClientKey, models.SupportRequest{
		UserQuery: text,
		Language:  language,
		Sector:    sector,
		Context:   FormatContext(prior),
	})
	if err != nil {
		w.metrics.RecordWidgetSend("error", time.Since(start).Seconds())
		w.log.Error("support request failed", "session", w.opts.Session, "error", err)
		w.transcript = append(w.transcript, models.ChatMessage{Role: models.RoleAssistant, Content: widgetApology})
		return "", err
	}
	w.metrics.RecordWidgetSend("ok", time.Since(start).Seconds())

	w.transcript = append(w.transcript, models.ChatMessage{Role: models.RoleAssistant, Content: resp.Reply})

	prior = append(prior,
		models.ChatMessage{Role: models.RoleUser, Content: text},
		models.ChatMessage{Role: models.RoleAssistant, Content: resp.Reply},
	)
	if err := w.store.Save(ctx, w.opts.Session, prior); err != nil {
		w.log.Warn("history save failed", "session", w.opts.Session, "error", err)
	}
	return resp.Reply, nil
}

// SendVoice transcribes a recorded audio blob, auto-sends the text, and
// synthesizes the reply for playback. Transcription and synthesis failures
// are logged only; synthesis failure still delivers the text reply.
func (w *Widget) SendVoice(ctx context.Context, audio []byte) (VoiceResult, error) {
	if !w.opts.Capabilities.Voice {
		return VoiceResult{}, ErrVoiceDisabled
	}

	text, err := w.api.Transcribe(ctx, w.opts.ASRLanguage, audio)
	if err != nil {
		w.log.Error("transcription failed", "session", w.opts.Session, "error", err)
		return VoiceResult{}, err
	}
	if strings.TrimSpace(text) == "" {
		return VoiceResult{}, nil
	}

	reply, err := w.Send(ctx, text)
	if err != nil {
		return VoiceResult{Text: text}, err
	}

	result := VoiceResult{Text: text, Reply: reply}
	if speech, err := w.api.Synthesize(ctx, reply, w.opts.Language); err != nil {
		w.log.Warn("speech synthesis failed", "session", w.opts.Session, "error", err)
	} else {
		result.Speech = speech
	}
	return result, nil
}
