package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const authPage = `<!doctype html>
<html>
<head><title>Lucy AI - Sign in</title></head>
<body>
  <h1>Sign in</h1>
  <p>Authentication is handled by the support platform. Sign in there, then
  return to the console.</p>
</body>
</html>`

const indexPage = `<!doctype html>
<html>
<head><title>Lucy AI</title></head>
<body>
  <h1>Lucy AI support gateway</h1>
  <p>Embed the widget with:</p>
  <pre>&lt;script src="/widget.js"&gt;&lt;/script&gt;
&lt;script&gt;window.__LUCY_CLIENT_KEY__ = "your-client-key";&lt;/script&gt;</pre>
</body>
</html>`

// SetupPageRoutes serves the landing and auth placeholder pages. The console
// redirects here when the settings fetch fails; the auth flow itself lives
// on the backend.
func SetupPageRoutes(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
	})

	router.GET("/auth", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(authPage))
	})
}
