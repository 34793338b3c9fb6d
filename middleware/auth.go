package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gamewrld/server/cache"
	"github.com/gamewrld/server/config"
	"github.com/gin-gonic/gin"
)

const (
	UserIDKey   = "user_id"
	UsernameKey = "username"
	TokenKey    = "session_token"
)

const sessionLookupTimeout = 2 * time.Second

// SessionKey is the cache key under which a live session token is stored.
func SessionKey(token string) string {
	return "session:" + token
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// Auth requires a valid Bearer JWT whose session is still present in the
// cache and belongs to the user named in the claims. Logging out deletes the
// session, which revokes the token early.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenStr, ok := BearerToken(ctx)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := ParseToken(tokenStr, sec.JWTSecret)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		cacheCtx, cancel := context.WithTimeout(ctx.Request.Context(), sessionLookupTimeout)
		defer cancel()
		owner, err := c.Get(cacheCtx, SessionKey(tokenStr))
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		if owner != strconv.FormatInt(claims.UserID, 10) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session does not match token"})
			return
		}

		ctx.Set(UserIDKey, claims.UserID)
		ctx.Set(UsernameKey, claims.Username)
		ctx.Set(TokenKey, tokenStr)
		ctx.Next()
	}
}

// GetUserID returns the authenticated user id, or 0 when the request is
// anonymous.
func GetUserID(c *gin.Context) int64 {
	if v, exists := c.Get(UserIDKey); exists {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// GetSessionToken returns the token Auth accepted for this request.
func GetSessionToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}
