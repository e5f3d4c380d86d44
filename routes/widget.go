package routes

import (
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lucy-support-gateway/internal/backend"
	"lucy-support-gateway/internal/config"
	"lucy-support-gateway/internal/history"
	"lucy-support-gateway/internal/telemetry"
	"lucy-support-gateway/middleware"
	"lucy-support-gateway/models"
	"lucy-support-gateway/services"
	"lucy-support-gateway/static"
	"lucy-support-gateway/utils"
)

// widgetHub keeps one Widget per mounted session. Sessions arriving after a
// restart are remounted lazily; their transcript comes back from the
// history store.
type widgetHub struct {
	cfg     *config.Config
	api     *backend.Client
	store   history.Store
	metrics *telemetry.Metrics
	log     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*services.Widget
}

func (h *widgetHub) mount(c *gin.Context, session, clientKey string, caps services.WidgetCapabilities) *services.Widget {
	h.mu.Lock()
	if w, ok := h.sessions[session]; ok {
		h.mu.Unlock()
		return w
	}
	h.mu.Unlock()

	w := services.NewWidget(c.Request.Context(), h.api, h.store, h.metrics, h.log, services.WidgetOptions{
		ClientKey:    clientKey,
		Session:      session,
		Capabilities: caps,
		Language:     h.cfg.Language,
		Sector:       h.cfg.Sector,
		ASRLanguage:  h.cfg.ASRLanguage,
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.sessions[session]; ok {
		return existing
	}
	h.sessions[session] = w
	return w
}

func (h *widgetHub) lookup(c *gin.Context) *services.Widget {
	session := c.Param("id")
	h.mu.Lock()
	w, ok := h.sessions[session]
	h.mu.Unlock()
	if ok {
		return w
	}

	key, _ := middleware.ClientKey(c, services.DemoAPIKey)
	caps := services.WidgetCapabilities{
		Voice:        c.Query("voice") == "1",
		ManualLocale: c.Query("manual_locale") == "1",
	}
	return h.mount(c, session, key, caps)
}

type sessionRequest struct {
	ClientKey    string `json:"client_key"`
	Voice        bool   `json:"voice"`
	ManualLocale bool   `json:"manual_locale"`
}

type messageRequest struct {
	UserQuery string `json:"user_query" binding:"required"`
	Language  string `json:"language"`
	Sector    string `json:"sector"`
}

// SetupWidgetRoutes wires the embeddable widget surface: the loader script,
// the public widget-config endpoint, and the session-scoped chat endpoints.
// All of it is open CORS and rate limited per client key.
func SetupWidgetRoutes(router *gin.Engine, cfg *config.Config, api *backend.Client, store history.Store, metrics *telemetry.Metrics, log *slog.Logger, limiter *middleware.RateLimiter) {
	hub := &widgetHub{
		cfg:      cfg,
		api:      api,
		store:    store,
		metrics:  metrics,
		log:      log,
		sessions: make(map[string]*services.Widget),
	}

	router.GET("/widget.js", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/javascript; charset=utf-8", static.WidgetJS)
	})

	group := router.Group("/api")
	group.Use(middleware.WidgetCORS())
	group.Use(limiter.Limit(services.DemoAPIKey))

	// Appearance config by client key, merged over the defaults. A backend
	// failure degrades to the defaults; the widget must always render.
	group.GET("/widget-config", func(c *gin.Context) {
		key := c.Query("key")
		if key == "" {
			key = cfg.DevClientKey
		}
		merged := models.DefaultWidgetConfig()
		if server, err := api.WidgetConfig(c.Request.Context(), key); err != nil {
			log.Warn("widget config fetch failed", "key", key, "error", err)
		} else {
			merged = merged.Merge(server)
		}
		c.JSON(http.StatusOK, merged)
	})

	widget := group.Group("/widget")

	widget.POST("/session", func(c *gin.Context) {
		var req sessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		session := uuid.NewString()
		w := hub.mount(c, session, req.ClientKey, services.WidgetCapabilities{
			Voice:        req.Voice,
			ManualLocale: req.ManualLocale,
		})
		c.JSON(http.StatusOK, gin.H{
			"session_id":   session,
			"config":       w.Config(),
			"capabilities": w.Capabilities(),
			"transcript":   w.Transcript(),
		})
	})

	widget.GET("/session/:id", func(c *gin.Context) {
		w := hub.lookup(c)
		c.JSON(http.StatusOK, gin.H{
			"config":     w.Config(),
			"transcript": w.Transcript(),
			"open":       w.IsOpen(),
		})
	})

	widget.POST("/session/:id/toggle", func(c *gin.Context) {
		w := hub.lookup(c)
		c.JSON(http.StatusOK, gin.H{"open": w.Toggle()})
	})

	widget.POST("/session/:id/close", func(c *gin.Context) {
		hub.lookup(c).Close()
		c.Status(http.StatusNoContent)
	})

	widget.POST("/session/:id/message", func(c *gin.Context) {
		var req messageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		w := hub.lookup(c)
		reply, err := w.SendLocalized(c.Request.Context(), req.UserQuery, req.Language, req.Sector)
		if err != nil {
			utils.RespondWithUpstreamError(c, "Support request failed", gin.H{"transcript": w.Transcript()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reply": reply, "transcript": w.Transcript()})
	})

	widget.POST("/session/:id/voice", func(c *gin.Context) {
		audio, err := io.ReadAll(c.Request.Body)
		if err != nil || len(audio) == 0 {
			utils.RespondWithBadRequest(c, "Missing audio payload", nil)
			return
		}
		w := hub.lookup(c)
		result, err := w.SendVoice(c.Request.Context(), audio)
		if err != nil {
			// Media failures stay quiet on the widget side: no user-facing
			// message, just the log written by the component.
			c.Status(http.StatusNoContent)
			return
		}
		if result.Text == "" {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, gin.H{"text": result.Text, "reply": result.Reply})
	})

	widget.POST("/session/:id/tts", func(c *gin.Context) {
		var req struct {
			Text string `json:"text" binding:"required"`
			Lang string `json:"lang"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", nil)
			return
		}
		if req.Lang == "" {
			req.Lang = cfg.Language
		}
		audio, err := api.Synthesize(c.Request.Context(), req.Text, req.Lang)
		if err != nil {
			log.Warn("speech synthesis failed", "error", err)
			c.Status(http.StatusNoContent)
			return
		}
		c.Data(http.StatusOK, "application/octet-stream", audio)
	})
}
