package middleware

import (
	"net/http"
	"strings"

	"github.com/fluhartyml/NightGardDDNS/internal/client"
	"github.com/gin-gonic/gin"
)

// WsAuthMiddleware accepts the token from the header, the
// Sec-WebSocket-Protocol pair "Authorization, <token>", or ?token=.
func WsAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader(client.HeaderKey)

		if tokenString == "" {
			if protocols := c.GetHeader("Sec-WebSocket-Protocol"); protocols != "" {
				parts := strings.Split(protocols, ",")
				if len(parts) >= 2 && strings.TrimSpace(parts[0]) == "Authorization" {
					tokenString = strings.TrimSpace(parts[1])
				}
			}
		}
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		authorize(c, tokenString)
	}
}

// AuthMiddleware requires a valid session token in the X-NightGard-Key header.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authorize(c, c.GetHeader(client.HeaderKey))
	}
}

func authorize(c *gin.Context, tokenString string) {
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
		return
	}

	claims, err := client.ValidateToken(tokenString)
	if err != nil || !client.HasClientSession(tokenString) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	client.UpdateSessionLastUsed(tokenString)

	c.Set("username", claims.Username)
	c.Set("role", claims.Role)
	c.Set("token", tokenString)
	c.Next()
}

func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// DisableLogMiddleware marks the request so the access logger skips it.
func DisableLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("disable_log", true)
		c.Next()
	}
}
