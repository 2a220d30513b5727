package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS answers with the request origin when it is allow-listed and with
// defaultOrigin otherwise. Preflight requests stop here with an empty 200.
func CORS(allowed []string, defaultOrigin string) gin.HandlerFunc {
	allowSet := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		allowSet[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := defaultOrigin
		if reqOrigin := c.GetHeader("Origin"); reqOrigin != "" {
			if _, ok := allowSet[reqOrigin]; ok {
				origin = reqOrigin
			}
		}

		h := c.Writer.Header()
		if origin != "" {
			h.Set("Access-Control-Allow-Origin", origin)
		}
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Max-Age", "86400")
		h.Add("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}
