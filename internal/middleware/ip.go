package middleware

import (
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
)

// proxy headers checked after X-Forwarded-For, in order
var clientIPHeaders = []string{"CF-Connecting-IP", "True-Client-IP", "X-Real-IP", "X-Client-IP"}

// GetRealIP resolves the caller address for the audit log. The first public
// X-Forwarded-For hop wins, then the single-value proxy headers, then gin's
// ClientIP.
func GetRealIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		for _, hop := range strings.Split(xff, ",") {
			if addr, err := netip.ParseAddr(strings.TrimSpace(hop)); err == nil && isPublic(addr) {
				return addr.String()
			}
		}
	}
	for _, h := range clientIPHeaders {
		if addr, err := netip.ParseAddr(strings.TrimSpace(c.GetHeader(h))); err == nil {
			return addr.String()
		}
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

func isPublic(addr netip.Addr) bool {
	return !(addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified())
}

// IPMiddleware stores the resolved caller address under "real_ip".
func IPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("real_ip", GetRealIP(c))
		c.Next()
	}
}

// GetClientIP returns the address set by IPMiddleware, resolving it if absent.
func GetClientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return GetRealIP(c)
}
