package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// CORSMiddleware sets the necessary CORS headers. An empty origins list or a
// "*" entry allows any origin.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	anyOrigin := len(origins) == 0 || lo.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case anyOrigin:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && lo.Contains(origins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
