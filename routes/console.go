package routes

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lucy-support-gateway/internal/config"
	"lucy-support-gateway/middleware"
	"lucy-support-gateway/models"
	"lucy-support-gateway/services"
	"lucy-support-gateway/utils"
)

// SetupConsoleRoutes wires the admin console surface. Handlers are thin:
// every operation lives on the Controller and routes only serialize its view
// models. Failures are single best-effort round trips; nothing retries.
func SetupConsoleRoutes(router *gin.Engine, cfg *config.Config, ctrl *services.Controller, log *slog.Logger) {
	api := router.Group("/api")
	api.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	// Settings: the one place where a fetch failure changes navigation.
	// An unauthenticated console gets sent to the auth page, not an error.
	api.GET("/settings", func(c *gin.Context) {
		s, err := ctrl.LoadSettings(c.Request.Context())
		if err != nil {
			log.Warn("settings fetch failed, redirecting to auth", "error", err)
			c.Redirect(http.StatusFound, "/auth")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"settings":   s,
			"embed_code": services.EmbedSnippet(schemeHost(c), s.ClientAPIKey),
			"preview":    ctrl.PreviewTranscript(),
		})
	})

	api.POST("/settings", func(c *gin.Context) {
		var s models.Settings
		if err := c.ShouldBindJSON(&s); err != nil {
			utils.RespondWithBadRequest(c, "Invalid settings payload", gin.H{"error": err.Error()})
			return
		}
		if err := ctrl.SaveSettings(c.Request.Context(), s); err != nil {
			utils.RespondWithUpstreamError(c, "Failed to save settings", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "updated"})
	})

	api.GET("/clients", func(c *gin.Context) {
		rows, err := ctrl.Clients(c.Request.Context())
		if err != nil {
			utils.RespondWithUpstreamError(c, "Failed to load clients", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"clients": rows})
	})

	api.POST("/clients", func(c *gin.Context) {
		saveClient(c, ctrl, "")
	})

	api.PUT("/clients/:id", func(c *gin.Context) {
		saveClient(c, ctrl, c.Param("id"))
	})

	api.DELETE("/clients/:id", func(c *gin.Context) {
		if err := ctrl.DeleteClient(c.Request.Context(), c.Param("id")); err != nil {
			utils.RespondWithUpstreamError(c, "Failed to delete client", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	api.GET("/appointments", func(c *gin.Context) {
		rows, err := ctrl.Appointments(c.Request.Context())
		if err != nil {
			utils.RespondWithUpstreamError(c, "Failed to load appointments", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"appointments": rows})
	})

	api.POST("/appointments", func(c *gin.Context) {
		saveAppointment(c, ctrl, "")
	})

	api.PUT("/appointments/:id", func(c *gin.Context) {
		saveAppointment(c, ctrl, c.Param("id"))
	})

	api.DELETE("/appointments/:id", func(c *gin.Context) {
		if err := ctrl.DeleteAppointment(c.Request.Context(), c.Param("id")); err != nil {
			utils.RespondWithUpstreamError(c, "Failed to delete appointment", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	api.GET("/conversations", func(c *gin.Context) {
		rows, err := ctrl.Conversations(c.Request.Context(), c.Query("search"))
		if err != nil {
			utils.RespondWithUpstreamError(c, "Failed to load conversations", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": rows})
	})

	api.GET("/conversations/export", func(c *gin.Context) {
		data, count, err := ctrl.ExportConversations(c.Request.Context(), c.Query("search"))
		if err != nil {
			utils.RespondWithUpstreamError(c, "Failed to export conversations", nil)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="conversations.xlsx"`)
		c.Header("X-Record-Count", strconv.Itoa(count))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	})

	api.GET("/analytics", func(c *gin.Context) {
		view, err := ctrl.AnalyticsView(c.Request.Context())
		if err != nil {
			utils.RespondWithUpstreamError(c, "Failed to load analytics", nil)
			return
		}
		c.JSON(http.StatusOK, view)
	})

	api.GET("/activity", func(c *gin.Context) {
		rows, err := ctrl.ActivityFeed(c.Request.Context())
		if err != nil {
			utils.RespondWithUpstreamError(c, "Failed to load activity", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"activity": rows})
	})

	api.POST("/scan-site", func(c *gin.Context) {
		var req struct {
			URL string `json:"url"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid scan payload", nil)
			return
		}
		links, err := ctrl.ScanSite(c.Request.Context(), req.URL)
		if err != nil {
			utils.RespondWithUpstreamError(c, "Scan failed", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"links": links})
	})

	api.POST("/scrape-pages", func(c *gin.Context) {
		var req struct {
			URLs          []string `json:"urls"`
			KnowledgeBase string   `json:"knowledge_base"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid scrape payload", nil)
			return
		}
		kb, count, err := ctrl.ImportPages(c.Request.Context(), req.URLs, req.KnowledgeBase)
		if err == services.ErrNoPagesSelected {
			utils.RespondWithBadRequest(c, "Select pages.", nil)
			return
		}
		if err != nil {
			utils.RespondWithUpstreamError(c, "Import failed", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"knowledge_base": kb, "count": count})
	})

	api.POST("/upload", func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file", nil)
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read file", nil)
			return
		}
		defer file.Close()

		kb, err := ctrl.ImportFile(c.Request.Context(), fileHeader.Filename, file, c.PostForm("knowledge_base"))
		if err != nil {
			utils.RespondWithUpstreamError(c, "Upload failed", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"filename": fileHeader.Filename, "knowledge_base": kb})
	})

	api.POST("/preview/message", func(c *gin.Context) {
		var req struct {
			UserQuery string `json:"user_query"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid message payload", nil)
			return
		}
		reply, err := ctrl.PreviewSend(c.Request.Context(), req.UserQuery)
		if err != nil {
			utils.RespondWithUpstreamError(c, "Preview send failed", gin.H{"transcript": ctrl.PreviewTranscript()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reply": reply, "transcript": ctrl.PreviewTranscript()})
	})

	api.POST("/preview/voice", func(c *gin.Context) {
		audio, err := io.ReadAll(c.Request.Body)
		if err != nil || len(audio) == 0 {
			utils.RespondWithBadRequest(c, "Missing audio payload", nil)
			return
		}
		lang := c.DefaultQuery("lang", cfg.ASRLanguage)
		text, reply, err := ctrl.PreviewVoice(c.Request.Context(), audio, lang)
		if err != nil || text == "" {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, gin.H{"text": text, "reply": reply})
	})

	api.POST("/preview/clear", func(c *gin.Context) {
		ctrl.ClearPreview()
		c.JSON(http.StatusOK, gin.H{"preview": ctrl.PreviewTranscript()})
	})

	api.POST("/generate-key", func(c *gin.Context) {
		key := services.GenerateClientKey()
		c.JSON(http.StatusOK, gin.H{
			"client_api_key": key,
			"embed_code":     services.EmbedSnippet(schemeHost(c), key),
		})
	})
}

func saveClient(c *gin.Context, ctrl *services.Controller, id string) {
	var cl models.Client
	if err := c.ShouldBindJSON(&cl); err != nil {
		utils.RespondWithBadRequest(c, "Invalid client payload", gin.H{"error": err.Error()})
		return
	}
	cl.ID = id
	if err := ctrl.SaveClient(c.Request.Context(), cl); err != nil {
		utils.RespondWithUpstreamError(c, "Failed to save client", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func saveAppointment(c *gin.Context, ctrl *services.Controller, id string) {
	var a models.Appointment
	if err := c.ShouldBindJSON(&a); err != nil {
		utils.RespondWithBadRequest(c, "Invalid appointment payload", gin.H{"error": err.Error()})
		return
	}
	a.ID = id
	if err := ctrl.SaveAppointment(c.Request.Context(), a); err != nil {
		utils.RespondWithUpstreamError(c, "Failed to save appointment", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func schemeHost(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
