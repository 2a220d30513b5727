package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ClientIdentityKey = "client_identity"

	// UnknownClient is shared by every request with no usable address.
	UnknownClient = "unknown"
)

// ClientIdentity picks the rate limit key for r: the first X-Forwarded-For
// entry, then X-Real-IP, then the socket address.
func ClientIdentity(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}

	return UnknownClient
}

// Identity stores the client identity in the gin context.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ClientIdentityKey, ClientIdentity(c.Request))
		c.Next()
	}
}

func identityFrom(c *gin.Context) string {
	if id := c.GetString(ClientIdentityKey); id != "" {
		return id
	}
	return ClientIdentity(c.Request)
}
