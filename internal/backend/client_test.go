package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lucy-support-gateway/models"
)

func TestSupportSendsKeyAndBody(t *testing.T) {
	var gotKey string
	var gotBody models.SupportRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/support" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get(APIKeyHeader)
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		json.NewEncoder(w).Encode(models.SupportResponse{Reply: "hello back"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Support(context.Background(), "key-123", models.SupportRequest{
		UserQuery: "hi",
		Language:  "am",
		Sector:    "admin_defined",
		Context:   "user: earlier",
	})
	if err != nil {
		t.Fatalf("Support failed: %v", err)
	}
	if resp.Reply != "hello back" {
		t.Errorf("Expected reply 'hello back', got %q", resp.Reply)
	}
	if gotKey != "key-123" {
		t.Errorf("Expected client key header 'key-123', got %q", gotKey)
	}
	if gotBody.Context != "user: earlier" {
		t.Errorf("Expected context forwarded, got %q", gotBody.Context)
	}
}

func TestSupportStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Support(context.Background(), "k", models.SupportRequest{UserQuery: "hi"})
	if err == nil {
		t.Fatal("Expected error for 500 response")
	}
}

func TestConversationsSearchEncoding(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("search")
		json.NewEncoder(w).Encode([]models.ConversationEntry{{UserQuery: "q"}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	entries, err := c.Conversations(context.Background(), "hello world & more")
	if err != nil {
		t.Fatalf("Conversations failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if gotQuery != "hello world & more" {
		t.Errorf("Search term mangled in transit: %q", gotQuery)
	}
}

func TestClientCRUDRoutes(t *testing.T) {
	type call struct{ method, path string }
	var calls []call

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path})
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	if err := c.CreateClient(ctx, models.Client{Name: "A"}); err != nil {
		t.Fatalf("CreateClient failed: %v", err)
	}
	if err := c.UpdateClient(ctx, "c1", models.Client{Name: "B"}); err != nil {
		t.Fatalf("UpdateClient failed: %v", err)
	}
	if err := c.DeleteClient(ctx, "c1"); err != nil {
		t.Fatalf("DeleteClient failed: %v", err)
	}

	want := []call{
		{http.MethodPost, "/api/clients"},
		{http.MethodPut, "/api/clients/c1"},
		{http.MethodDelete, "/api/clients/c1"},
	}
	if len(calls) != len(want) {
		t.Fatalf("Expected %d calls, got %d", len(want), len(calls))
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("Call %d: expected %v, got %v", i, want[i], calls[i])
		}
	}
}

func TestUploadMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm failed: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile failed: %v", err)
		}
		defer file.Close()
		if header.Filename != "notes.pdf" {
			t.Errorf("Expected filename notes.pdf, got %q", header.Filename)
		}
		json.NewEncoder(w).Encode(models.UploadResult{Filename: header.Filename, ExtractedText: "extracted"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Upload(context.Background(), "notes.pdf", strings.NewReader("fake pdf bytes"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if res.ExtractedText != "extracted" {
		t.Errorf("Expected extracted text, got %q", res.ExtractedText)
	}
}

func TestTranscribeLangParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/asr" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("lang"); got != "amh" {
			t.Errorf("Expected lang=amh, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "selam"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	text, err := c.Transcribe(context.Background(), "amh", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "selam" {
		t.Errorf("Expected transcription 'selam', got %q", text)
	}
}

func TestWidgetConfigByKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "lucy-abc" {
			t.Errorf("Expected key=lucy-abc, got %q", got)
		}
		json.NewEncoder(w).Encode(models.WidgetConfig{BotName: "Tenant Bot"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	cfg, err := c.WidgetConfig(context.Background(), "lucy-abc")
	if err != nil {
		t.Fatalf("WidgetConfig failed: %v", err)
	}
	if cfg.BotName != "Tenant Bot" {
		t.Errorf("Expected tenant bot name, got %q", cfg.BotName)
	}
}
