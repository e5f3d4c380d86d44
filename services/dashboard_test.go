package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lucy-support-gateway/internal/backend"
	"lucy-support-gateway/models"
)

// consoleBackend stubs the console-facing endpoints and records mutations.
type consoleBackend struct {
	settings      models.Settings
	settingsFail  bool
	conversations []models.ConversationEntry
	analytics     models.Analytics
	activity      []models.ActivityEntry
	links         []string
	scrape        models.ScrapeResult
	upload        models.UploadResult
	supportFail   bool
	reply         string

	calls []string
}

func (b *consoleBackend) server(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.calls = append(b.calls, r.Method+" "+r.URL.Path)
		switch {
		case r.URL.Path == "/api/settings" && r.Method == http.MethodGet:
			if b.settingsFail {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(b.settings)
		case r.URL.Path == "/api/settings" && r.Method == http.MethodPost:
			json.NewDecoder(r.Body).Decode(&b.settings)
			w.Write([]byte("{}"))
		case r.URL.Path == "/api/conversations":
			json.NewEncoder(w).Encode(b.conversations)
		case r.URL.Path == "/api/analytics":
			json.NewEncoder(w).Encode(b.analytics)
		case r.URL.Path == "/api/activity":
			json.NewEncoder(w).Encode(b.activity)
		case r.URL.Path == "/api/scan-site":
			json.NewEncoder(w).Encode(map[string][]string{"links": b.links})
		case r.URL.Path == "/api/scrape-pages":
			json.NewEncoder(w).Encode(b.scrape)
		case r.URL.Path == "/api/upload":
			json.NewEncoder(w).Encode(b.upload)
		case r.URL.Path == "/api/support":
			if b.supportFail {
				http.Error(w, "down", http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(models.SupportResponse{Reply: b.reply})
		case strings.HasPrefix(r.URL.Path, "/api/clients") || strings.HasPrefix(r.URL.Path, "/api/appointments"):
			w.Write([]byte("{}"))
		default:
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
}

func newTestController(t *testing.T, b *consoleBackend) *Controller {
	t.Helper()
	srv := b.server(t)
	t.Cleanup(srv.Close)
	return NewController(backend.New(srv.URL), discardLogger())
}

func TestLoadSettingsResetsPreview(t *testing.T) {
	b := &consoleBackend{settings: models.Settings{WelcomeMessage: "Welcome to Acme"}}
	ctrl := newTestController(t, b)

	s, err := ctrl.LoadSettings(context.Background())
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if s.WelcomeMessage != "Welcome to Acme" {
		t.Errorf("Unexpected settings: %+v", s)
	}

	preview := ctrl.PreviewTranscript()
	if len(preview) != 1 || preview[0].Content != "Welcome to Acme" {
		t.Errorf("Preview should reset to the welcome message, got %+v", preview)
	}
}

func TestLoadSettingsFailure(t *testing.T) {
	b := &consoleBackend{settingsFail: true}
	ctrl := newTestController(t, b)

	if _, err := ctrl.LoadSettings(context.Background()); err == nil {
		t.Fatal("Expected error when settings fetch fails")
	}
}

func TestSaveClientCreateVsUpdate(t *testing.T) {
	b := &consoleBackend{}
	ctrl := newTestController(t, b)
	ctx := context.Background()

	if err := ctrl.SaveClient(ctx, models.Client{Name: "New"}); err != nil {
		t.Fatalf("SaveClient failed: %v", err)
	}
	if err := ctrl.SaveClient(ctx, models.Client{ID: "c42", Name: "Existing"}); err != nil {
		t.Fatalf("SaveClient failed: %v", err)
	}

	want := []string{"POST /api/clients", "PUT /api/clients/c42"}
	if len(b.calls) != 2 || b.calls[0] != want[0] || b.calls[1] != want[1] {
		t.Errorf("Expected %v, got %v", want, b.calls)
	}
}

func TestDeleteClientRequiresID(t *testing.T) {
	b := &consoleBackend{}
	ctrl := newTestController(t, b)

	if err := ctrl.DeleteClient(context.Background(), ""); err == nil {
		t.Error("Expected error for empty id")
	}
	if len(b.calls) != 0 {
		t.Errorf("Empty id must not reach the backend, got %v", b.calls)
	}
}

func TestConversationsCapAndPreview(t *testing.T) {
	long := strings.Repeat("x", 300)
	entries := make([]models.ConversationEntry, 60)
	for i := range entries {
		entries[i] = models.ConversationEntry{UserQuery: "q", BotReply: long}
	}
	entries[0].BotReply = "short"

	b := &consoleBackend{conversations: entries}
	ctrl := newTestController(t, b)

	rows, err := ctrl.Conversations(context.Background(), "")
	if err != nil {
		t.Fatalf("Conversations failed: %v", err)
	}
	if len(rows) != 50 {
		t.Fatalf("Expected 50 rendered rows, got %d", len(rows))
	}

	// The ellipsis marker is unconditional, short replies included.
	if rows[0].ReplyPreview != "short..." {
		t.Errorf("Expected 'short...', got %q", rows[0].ReplyPreview)
	}
	wantLong := strings.Repeat("x", 150) + "..."
	if rows[1].ReplyPreview != wantLong {
		t.Errorf("Long reply should cut to 150 runes plus marker, got %d chars", len(rows[1].ReplyPreview))
	}
}

func TestAnalyticsViewBars(t *testing.T) {
	b := &consoleBackend{analytics: models.Analytics{
		TotalClients:       12,
		ActiveClients:      7,
		TotalAppointments:  5,
		TotalConversations: 10,
		ConversationsPerDay: map[string]int{
			"2026-08-20": 2,
			"2026-08-21": 8,
			"2026-08-22": 0,
		},
	}}
	ctrl := newTestController(t, b)

	view, err := ctrl.AnalyticsView(context.Background())
	if err != nil {
		t.Fatalf("AnalyticsView failed: %v", err)
	}
	if len(view.Cards) != 4 {
		t.Fatalf("Expected 4 stat cards, got %d", len(view.Cards))
	}
	if view.Cards[0].Value != 12 || view.Cards[0].Sub != "7 active" {
		t.Errorf("Unexpected first card: %+v", view.Cards[0])
	}

	if len(view.Bars) != 3 {
		t.Fatalf("Expected 3 bars, got %d", len(view.Bars))
	}
	// Days render sorted; labels are the trailing "08-20" style fragment.
	if view.Bars[0].Label != "08-20" || view.Bars[1].Label != "08-21" || view.Bars[2].Label != "08-22" {
		t.Errorf("Unexpected labels: %q %q %q", view.Bars[0].Label, view.Bars[1].Label, view.Bars[2].Label)
	}
	// Proportional to the busiest day: 2/8*160 = 40, 8/8*160 = 160.
	if view.Bars[0].Height != 40 {
		t.Errorf("Expected height 40, got %v", view.Bars[0].Height)
	}
	if view.Bars[1].Height != 160 {
		t.Errorf("Expected height 160, got %v", view.Bars[1].Height)
	}
	// Zero-count days keep the visibility floor.
	if view.Bars[2].Height != 4 {
		t.Errorf("Expected floor height 4, got %v", view.Bars[2].Height)
	}
}

func TestActivityFeedDefaultsEmptyQuery(t *testing.T) {
	b := &consoleBackend{activity: []models.ActivityEntry{
		{Timestamp: 100, Payload: models.ActivityPayload{Query: "", Usage: models.ActivityUsage{TotalTokens: 9}}},
	}}
	ctrl := newTestController(t, b)

	rows, err := ctrl.ActivityFeed(context.Background())
	if err != nil {
		t.Fatalf("ActivityFeed failed: %v", err)
	}
	if rows[0].Query != "Unknown" {
		t.Errorf("Empty query should render as Unknown, got %q", rows[0].Query)
	}
	if rows[0].Tokens != 9 {
		t.Errorf("Expected 9 tokens, got %d", rows[0].Tokens)
	}
}

func TestScanSiteEmptyURLIsNoOp(t *testing.T) {
	b := &consoleBackend{links: []string{"https://a/x"}}
	ctrl := newTestController(t, b)

	choices, err := ctrl.ScanSite(context.Background(), "   ")
	if err != nil {
		t.Fatalf("ScanSite failed: %v", err)
	}
	if choices != nil {
		t.Errorf("Blank URL should be a no-op, got %v", choices)
	}
	if len(b.calls) != 0 {
		t.Errorf("Blank URL must not reach the backend, got %v", b.calls)
	}

	choices, err = ctrl.ScanSite(context.Background(), "https://a")
	if err != nil {
		t.Fatalf("ScanSite failed: %v", err)
	}
	if len(choices) != 1 || !choices[0].Selected {
		t.Errorf("Scan results should default to checked, got %+v", choices)
	}
}

func TestImportPages(t *testing.T) {
	b := &consoleBackend{scrape: models.ScrapeResult{Text: "Page one text.\nPage two text.", Count: 2}}
	ctrl := newTestController(t, b)

	if _, _, err := ctrl.ImportPages(context.Background(), nil, "kb"); err != ErrNoPagesSelected {
		t.Errorf("Expected ErrNoPagesSelected, got %v", err)
	}

	kb, count, err := ctrl.ImportPages(context.Background(), []string{"https://a/x"}, "existing kb  ")
	if err != nil {
		t.Fatalf("ImportPages failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}
	want := "existing kb  \nPage one text.\nPage two text."
	if kb != want {
		t.Errorf("Knowledge base appended wrong:\nwant %q\ngot  %q", want, kb)
	}
}

func TestImportFileDelimiter(t *testing.T) {
	b := &consoleBackend{upload: models.UploadResult{Filename: "faq.pdf", ExtractedText: "Answers."}}
	ctrl := newTestController(t, b)

	kb, err := ctrl.ImportFile(context.Background(), "faq.pdf", strings.NewReader("bytes"), "base")
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	want := "base\n\n--- faq.pdf ---\nAnswers."
	if kb != want {
		t.Errorf("Expected delimited append:\nwant %q\ngot  %q", want, kb)
	}
}

func TestPreviewSendSuccessAndFailure(t *testing.T) {
	b := &consoleBackend{reply: "preview reply"}
	ctrl := newTestController(t, b)
	ctx := context.Background()

	if reply, err := ctrl.PreviewSend(ctx, "  "); err != nil || reply != "" {
		t.Errorf("Blank preview send should be a no-op, got %q, %v", reply, err)
	}

	reply, err := ctrl.PreviewSend(ctx, "hello")
	if err != nil {
		t.Fatalf("PreviewSend failed: %v", err)
	}
	if reply != "preview reply" {
		t.Errorf("Expected reply, got %q", reply)
	}

	b.supportFail = true
	if _, err := ctrl.PreviewSend(ctx, "again"); err == nil {
		t.Fatal("Expected error from failed preview send")
	}

	transcript := ctrl.PreviewTranscript()
	last := transcript[len(transcript)-1]
	if last.Content != "Connection error" {
		t.Errorf("Failed preview should append the generic error turn, got %+v", last)
	}

	ctrl.ClearPreview()
	if got := len(ctrl.PreviewTranscript()); got != 1 {
		t.Errorf("Clear should leave the welcome turn only, got %d", got)
	}
}

func TestGenerateClientKey(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		key := GenerateClientKey()
		if !strings.HasPrefix(key, "lucy-") {
			t.Fatalf("Expected lucy- prefix, got %q", key)
		}
		if len(key) != len("lucy-")+9 {
			t.Fatalf("Expected 9-character suffix, got %q", key)
		}
		if seen[key] {
			t.Fatalf("Duplicate key %q", key)
		}
		seen[key] = true
	}
}

func TestEmbedSnippet(t *testing.T) {
	snippet := EmbedSnippet("https://gw.example.com", "lucy-abc123def")
	if !strings.Contains(snippet, `src="https://gw.example.com/widget.js"`) {
		t.Errorf("Snippet missing loader URL: %s", snippet)
	}
	if !strings.Contains(snippet, `window.__LUCY_CLIENT_KEY__ = "lucy-abc123def"`) {
		t.Errorf("Snippet missing client key: %s", snippet)
	}
}
