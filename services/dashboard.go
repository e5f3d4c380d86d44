package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"lucy-support-gateway/internal/backend"
	"lucy-support-gateway/models"
)

const (
	// DemoAPIKey authenticates chat-preview sends from the console.
	DemoAPIKey = "dashboard-demo-key"

	previewLanguage = "auto"
	previewSector   = "admin"
	previewFailure  = "Connection error"

	// Conversation list rendering caps. Cosmetic only: the data itself is
	// never mutated.
	maxConversationRows = 50
	replyPreviewRunes   = 150

	// Bar chart geometry: tallest day is 160, nothing drops under the 4px
	// floor so zero-count days stay visible.
	chartMaxHeight  = 160.0
	chartFloorPx    = 4.0
	dayLabelLen     = 5
	defaultWelcome  = "Hello!"
	defaultBotReply = "Unknown"
)

// ErrNoPagesSelected is returned when an import is requested with no links.
var ErrNoPagesSelected = errors.New("no pages selected")

// Controller drives the admin console: it reflects backend state into view
// models, captures edits and pushes them back. It also owns the chat preview
// transcript as instance state.
type Controller struct {
	api *backend.Client
	log *slog.Logger

	mu      sync.Mutex
	welcome string
	preview []models.ChatMessage
}

func NewController(api *backend.Client, log *slog.Logger) *Controller {
	return &Controller{api: api, log: log, welcome: defaultWelcome}
}

// ClientRow is one rendered client table row.
type ClientRow struct {
	ID     string        `json:"id"`
	Client models.Client `json:"client"`
}

// AppointmentRow is one rendered appointment table row.
type AppointmentRow struct {
	ID          string             `json:"id"`
	Appointment models.Appointment `json:"appointment"`
}

// ConversationRow is one rendered log entry. ReplyPreview is the bot reply
// cut to 150 characters with an ellipsis marker, regardless of length.
type ConversationRow struct {
	UserQuery    string `json:"user_query"`
	ReplyPreview string `json:"reply_preview"`
	Timestamp    string `json:"timestamp"`
	Language     string `json:"language"`
	Tokens       int    `json:"tokens"`
}

// StatCard is one headline analytics card.
type StatCard struct {
	Label string `json:"label"`
	Value int    `json:"value"`
	Sub   string `json:"sub"`
}

// ChartBar is one proportional bar of the per-day conversation chart.
type ChartBar struct {
	Label  string  `json:"label"`
	Count  int     `json:"count"`
	Height float64 `json:"height"`
}

// AnalyticsView is the rendered analytics panel.
type AnalyticsView struct {
	Cards []StatCard `json:"cards"`
	Bars  []ChartBar `json:"bars"`
}

// ActivityRow is one item of the recent-activity feed.
type ActivityRow struct {
	Timestamp int64  `json:"timestamp"`
	Query     string `json:"query"`
	Tokens    int    `json:"tokens"`
}

// LinkChoice is one candidate page from a site scan, presented as a
// checkbox defaulting to checked.
type LinkChoice struct {
	URL      string `json:"url"`
	Selected bool   `json:"selected"`
}

// LoadSettings fetches the tenant settings. Any failure here (typically an
// unauthenticated session) is the caller's cue to redirect to the auth page
// instead of rendering an error; no other fetch changes navigation. On
// success the preview transcript is reset with the welcome message.
func (c *Controller) LoadSettings(ctx context.Context) (models.Settings, error) {
	s, err := c.api.GetSettings(ctx)
	if err != nil {
		return models.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	c.mu.Lock()
	c.welcome = s.WelcomeMessage
	if c.welcome == "" {
		c.welcome = defaultWelcome
	}
	c.preview = []models.ChatMessage{{Role: models.RoleAssistant, Content: c.welcome}}
	c.mu.Unlock()

	return s, nil
}

// SaveSettings replaces the settings wholesale.
func (c *Controller) SaveSettings(ctx context.Context, s models.Settings) error {
	return c.api.SaveSettings(ctx, s)
}

// Clients loads the full client set and renders it as rows sorted by id.
func (c *Controller) Clients(ctx context.Context) ([]ClientRow, error) {
	set, err := c.api.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]ClientRow, 0, len(set))
	for id, cl := range set {
		rows = append(rows, ClientRow{ID: id, Client: cl})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

// SaveClient creates when the id is empty and updates otherwise. Ids are
// backend-assigned; this side never invents one.
func (c *Controller) SaveClient(ctx context.Context, cl models.Client) error {
	id := cl.ID
	cl.ID = ""
	if id == "" {
		return c.api.CreateClient(ctx, cl)
	}
	return c.api.UpdateClient(ctx, id, cl)
}

func (c *Controller) DeleteClient(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("missing client id")
	}
	return c.api.DeleteClient(ctx, id)
}

// Appointments loads the full appointment set as rows sorted by id.
func (c *Controller) Appointments(ctx context.Context) ([]AppointmentRow, error) {
	set, err := c.api.ListAppointments(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]AppointmentRow, 0, len(set))
	for id, a := range set {
		if a.Status == "" {
			a.Status = models.AppointmentStatusScheduled
		}
		rows = append(rows, AppointmentRow{ID: id, Appointment: a})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (c *Controller) SaveAppointment(ctx context.Context, a models.Appointment) error {
	id := a.ID
	a.ID = ""
	if id == "" {
		return c.api.CreateAppointment(ctx, a)
	}
	return c.api.UpdateAppointment(ctx, id, a)
}

func (c *Controller) DeleteAppointment(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("missing appointment id")
	}
	return c.api.DeleteAppointment(ctx, id)
}

// Conversations renders at most 50 rows no matter how many the backend
// returns. The search string is forwarded for server-side substring match.
func (c *Controller) Conversations(ctx context.Context, search string) ([]ConversationRow, error) {
	entries, err := c.api.Conversations(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, err
	}
	if len(entries) > maxConversationRows {
		entries = entries[:maxConversationRows]
	}
	rows := make([]ConversationRow, len(entries))
	for i, e := range entries {
		rows[i] = ConversationRow{
			UserQuery:    e.UserQuery,
			ReplyPreview: previewReply(e.BotReply),
			Timestamp:    e.Timestamp,
			Language:     e.Language,
			Tokens:       e.Tokens,
		}
	}
	return rows, nil
}

func previewReply(reply string) string {
	runes := []rune(reply)
	if len(runes) > replyPreviewRunes {
		runes = runes[:replyPreviewRunes]
	}
	return string(runes) + "..."
}

// AnalyticsView renders the stat cards and the per-day bar chart. Bar height
// is count/max * 160 with a 4px floor; the x label is the last 5 characters
// of the day key.
func (c *Controller) AnalyticsView(ctx context.Context) (AnalyticsView, error) {
	a, err := c.api.Analytics(ctx)
	if err != nil {
		return AnalyticsView{}, err
	}

	view := AnalyticsView{
		Cards: []StatCard{
			{Label: "Total Clients", Value: a.TotalClients, Sub: fmt.Sprintf("%d active", a.ActiveClients)},
			{Label: "Appointments", Value: a.TotalAppointments, Sub: fmt.Sprintf("%d scheduled", a.ScheduledAppointments)},
			{Label: "Conversations", Value: a.TotalConversations, Sub: fmt.Sprintf("%d tokens used", a.TotalTokens)},
			{Label: "Active Clients", Value: a.ActiveClients, Sub: "currently active"},
		},
	}

	days := make([]string, 0, len(a.ConversationsPerDay))
	maxVal := 1
	for day, count := range a.ConversationsPerDay {
		days = append(days, day)
		if count > maxVal {
			maxVal = count
		}
	}
	sort.Strings(days)

	for _, day := range days {
		count := a.ConversationsPerDay[day]
		height := float64(count) / float64(maxVal) * chartMaxHeight
		if height < chartFloorPx {
			height = chartFloorPx
		}
		view.Bars = append(view.Bars, ChartBar{Label: dayLabel(day), Count: count, Height: height})
	}
	return view, nil
}

func dayLabel(day string) string {
	if len(day) <= dayLabelLen {
		return day
	}
	return day[len(day)-dayLabelLen:]
}

// ActivityFeed renders the most-recent-first activity entries as delivered.
func (c *Controller) ActivityFeed(ctx context.Context) ([]ActivityRow, error) {
	entries, err := c.api.Activity(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]ActivityRow, len(entries))
	for i, e := range entries {
		query := e.Payload.Query
		if query == "" {
			query = defaultBotReply
		}
		rows[i] = ActivityRow{Timestamp: e.Timestamp, Query: query, Tokens: e.Payload.Usage.TotalTokens}
	}
	return rows, nil
}

// ScanSite requests candidate page links for a site and presents each as a
// default-checked choice. An empty URL is a no-op.
func (c *Controller) ScanSite(ctx context.Context, siteURL string) ([]LinkChoice, error) {
	siteURL = strings.TrimSpace(siteURL)
	if siteURL == "" {
		return nil, nil
	}
	links, err := c.api.ScanSite(ctx, siteURL)
	if err != nil {
		return nil, err
	}
	choices := make([]LinkChoice, len(links))
	for i, l := range links {
		choices[i] = LinkChoice{URL: l, Selected: true}
	}
	return choices, nil
}

// ImportPages scrapes the selected links and appends the extracted text to
// the knowledge base, newline-joined with outer whitespace trimmed.
func (c *Controller) ImportPages(ctx context.Context, urls []string, knowledgeBase string) (string, int, error) {
	if len(urls) == 0 {
		return knowledgeBase, 0, ErrNoPagesSelected
	}
	res, err := c.api.ScrapePages(ctx, urls)
	if err != nil {
		return knowledgeBase, 0, err
	}
	return strings.TrimSpace(knowledgeBase + "\n" + res.Text), res.Count, nil
}

// ImportFile uploads a file for extraction and appends the text to the
// knowledge base under a delimiter line naming the file.
func (c *Controller) ImportFile(ctx context.Context, filename string, file io.Reader, knowledgeBase string) (string, error) {
	res, err := c.api.Upload(ctx, filename, file)
	if err != nil {
		return knowledgeBase, err
	}
	appended := knowledgeBase + "\n\n--- " + res.Filename + " ---\n" + res.ExtractedText
	return strings.TrimSpace(appended), nil
}

// PreviewSend relays one chat-preview message with the fixed demo key.
// Empty input is a no-op. On failure a generic error turn is appended so
// the preview transcript mirrors what a visitor would see.
func (c *Controller) PreviewSend(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.preview = append(c.preview, models.ChatMessage{Role: models.RoleUser, Content: text})

	resp, err := c.api.Support(ctx, DemoAPIKey, models.SupportRequest{
		UserQuery: text,
		Language:  previewLanguage,
		Sector:    previewSector,
	})
	if err != nil {
		c.log.Error("preview send failed", "error", err)
		c.preview = append(c.preview, models.ChatMessage{Role: models.RoleAssistant, Content: previewFailure})
		return "", err
	}

	c.preview = append(c.preview, models.ChatMessage{Role: models.RoleAssistant, Content: resp.Reply})
	return resp.Reply, nil
}

// PreviewVoice transcribes recorded audio and, when text came back, reuses
// it as if typed. A transcription failure is logged only.
func (c *Controller) PreviewVoice(ctx context.Context, audio []byte, lang string) (string, string, error) {
	text, err := c.api.Transcribe(ctx, lang, audio)
	if err != nil {
		c.log.Error("preview transcription failed", "error", err)
		return "", "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", "", nil
	}
	reply, err := c.PreviewSend(ctx, text)
	return text, reply, err
}

// PreviewTranscript returns a copy of the preview transcript.
func (c *Controller) PreviewTranscript() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ChatMessage, len(c.preview))
	copy(out, c.preview)
	return out
}

// ClearPreview resets the preview to the welcome message alone.
func (c *Controller) ClearPreview() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preview = []models.ChatMessage{{Role: models.RoleAssistant, Content: c.welcome}}
}

// GenerateClientKey mints a new widget key. Keys are opaque; only the
// backend binds them to a tenant when settings are saved.
func GenerateClientKey() string {
	return "lucy-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}

// EmbedSnippet renders the two script tags a host page needs.
func EmbedSnippet(origin, key string) string {
	return fmt.Sprintf("<script src=\"%s/widget.js\"></script>\n<script>\n  window.__LUCY_CLIENT_KEY__ = %q;\n</script>", origin, key)
}
