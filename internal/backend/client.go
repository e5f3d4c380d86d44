// Package backend is the typed client for the support platform's REST API.
// The platform is a pre-existing collaborator: it owns persistence, auth,
// chat completion, speech and knowledge ingestion, and this gateway only
// issues the documented requests against it. Every call is attempted exactly
// once; there are no retries and no backoff anywhere.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"lucy-support-gateway/models"
)

// APIKeyHeader carries the client key on support calls.
const APIKeyHeader = "X-API-KEY"

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.Code)
}

// Client talks to the backend REST surface. The support path, being the only
// high-volume public one, runs behind a circuit breaker and a client-side
// rate limiter; a breaker rejection surfaces like any other send failure.
type Client struct {
	baseURL string
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func New(baseURL string) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "SupportAPI",
		MaxRequests: 5,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{},
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// BaseURL returns the configured backend origin.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) doJSON(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// GetSettings fetches the tenant settings singleton.
func (c *Client) GetSettings(ctx context.Context) (models.Settings, error) {
	var s models.Settings
	err := c.doJSON(ctx, http.MethodGet, "/api/settings", nil, nil, &s)
	return s, err
}

// SaveSettings replaces the tenant settings wholesale.
func (c *Client) SaveSettings(ctx context.Context, s models.Settings) error {
	return c.doJSON(ctx, http.MethodPost, "/api/settings", nil, s, nil)
}

// Support relays one user query to the chat endpoint, authenticated by the
// client key.
func (c *Client) Support(ctx context.Context, apiKey string, req models.SupportRequest) (models.SupportResponse, error) {
	var resp models.SupportResponse

	if err := c.limiter.Wait(ctx); err != nil {
		return resp, err
	}

	_, err := c.breaker.Execute(func() (any, error) {
		headers := map[string]string{APIKeyHeader: apiKey}
		return nil, c.doJSON(ctx, http.MethodPost, "/api/support", headers, req, &resp)
	})
	return resp, err
}

// Upload posts a file as multipart form data and returns the extracted text.
func (c *Client) Upload(ctx context.Context, filename string, file io.Reader) (models.UploadResult, error) {
	var result models.UploadResult

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return result, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return result, err
	}
	if err := mw.Close(); err != nil {
		return result, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return result, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return result, fmt.Errorf("POST /api/upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return result, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	err = json.NewDecoder(resp.Body).Decode(&result)
	return result, err
}

// ScanSite asks the backend to discover candidate page links for a site.
func (c *Client) ScanSite(ctx context.Context, siteURL string) ([]string, error) {
	var resp struct {
		Links []string `json:"links"`
	}
	body := map[string]string{"url": siteURL}
	if err := c.doJSON(ctx, http.MethodPost, "/api/scan-site", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.Links, nil
}

// ScrapePages extracts text from the selected pages.
func (c *Client) ScrapePages(ctx context.Context, urls []string) (models.ScrapeResult, error) {
	var resp models.ScrapeResult
	body := map[string][]string{"urls": urls}
	err := c.doJSON(ctx, http.MethodPost, "/api/scrape-pages", nil, body, &resp)
	return resp, err
}

// ListClients returns the full client set keyed by backend-assigned id.
func (c *Client) ListClients(ctx context.Context) (map[string]models.Client, error) {
	out := map[string]models.Client{}
	err := c.doJSON(ctx, http.MethodGet, "/api/clients", nil, nil, &out)
	return out, err
}

func (c *Client) CreateClient(ctx context.Context, cl models.Client) error {
	return c.doJSON(ctx, http.MethodPost, "/api/clients", nil, cl, nil)
}

func (c *Client) UpdateClient(ctx context.Context, id string, cl models.Client) error {
	return c.doJSON(ctx, http.MethodPut, "/api/clients/"+url.PathEscape(id), nil, cl, nil)
}

func (c *Client) DeleteClient(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/clients/"+url.PathEscape(id), nil, nil, nil)
}

// ListAppointments returns the full appointment set keyed by id.
func (c *Client) ListAppointments(ctx context.Context) (map[string]models.Appointment, error) {
	out := map[string]models.Appointment{}
	err := c.doJSON(ctx, http.MethodGet, "/api/appointments", nil, nil, &out)
	return out, err
}

func (c *Client) CreateAppointment(ctx context.Context, a models.Appointment) error {
	return c.doJSON(ctx, http.MethodPost, "/api/appointments", nil, a, nil)
}

func (c *Client) UpdateAppointment(ctx context.Context, id string, a models.Appointment) error {
	return c.doJSON(ctx, http.MethodPut, "/api/appointments/"+url.PathEscape(id), nil, a, nil)
}

func (c *Client) DeleteAppointment(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/appointments/"+url.PathEscape(id), nil, nil, nil)
}

// Conversations returns logged exchanges, substring-filtered server-side
// when search is non-empty.
func (c *Client) Conversations(ctx context.Context, search string) ([]models.ConversationEntry, error) {
	path := "/api/conversations"
	if search != "" {
		path += "?search=" + url.QueryEscape(search)
	}
	var out []models.ConversationEntry
	err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &out)
	return out, err
}

// Analytics returns the aggregate counters and the per-day conversation map.
func (c *Client) Analytics(ctx context.Context) (models.Analytics, error) {
	var out models.Analytics
	err := c.doJSON(ctx, http.MethodGet, "/api/analytics", nil, nil, &out)
	return out, err
}

// Activity returns the most-recent-first activity feed.
func (c *Client) Activity(ctx context.Context) ([]models.ActivityEntry, error) {
	var out []models.ActivityEntry
	err := c.doJSON(ctx, http.MethodGet, "/api/activity", nil, nil, &out)
	return out, err
}

// WidgetConfig fetches the widget appearance scoped by client key.
func (c *Client) WidgetConfig(ctx context.Context, key string) (models.WidgetConfig, error) {
	var out models.WidgetConfig
	err := c.doJSON(ctx, http.MethodGet, "/api/widget-config?key="+url.QueryEscape(key), nil, nil, &out)
	return out, err
}

// Transcribe posts a raw audio blob for speech-to-text.
func (c *Client) Transcribe(ctx context.Context, lang string, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/asr?lang="+url.QueryEscape(lang), bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("POST /api/asr: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Text, nil
}

// Synthesize posts text for speech synthesis and returns the audio payload.
func (c *Client) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"text": text, "lang": lang})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/tts", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST /api/tts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	return io.ReadAll(resp.Body)
}
