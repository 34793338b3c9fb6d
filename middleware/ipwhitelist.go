package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// IPWhitelist only lets through clients whose IP matches an entry. Entries
// are plain addresses or CIDR blocks. Malformed entries match nothing, so a
// list made only of typos denies everyone. A list with no entries allows
// everyone.
func IPWhitelist(entries []string) gin.HandlerFunc {
	exact := make(map[string]bool, len(entries))
	var nets []*net.IPNet
	configured := 0
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		configured++
		if strings.Contains(e, "/") {
			if _, n, err := net.ParseCIDR(e); err == nil {
				nets = append(nets, n)
			}
			continue
		}
		if ip := net.ParseIP(e); ip != nil {
			exact[ip.String()] = true
		}
	}
	open := configured == 0

	return func(c *gin.Context) {
		if open || allowedIP(c.ClientIP(), exact, nets) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
	}
}

func allowedIP(raw string, exact map[string]bool, nets []*net.IPNet) bool {
	ip := net.ParseIP(raw)
	if ip == nil {
		return false
	}
	if exact[ip.String()] {
		return true
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
