package rest

import (
	"net/http"

	"github.com/gamewrld/server/cache"
	"github.com/gamewrld/server/config"
	mw "github.com/gamewrld/server/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers groups everything Mount needs to serve the API.
type Handlers struct {
	Users          *UserHandler
	FriendRequests *FriendRequestHandler
	Chat           *ChatHandler
}

// Mount registers /health and the /api routes on r. Global middleware is
// left to the caller; the API group gets the IP allowlist.
func Mount(r *gin.Engine, h Handlers, sec config.SecurityConfig, c cache.Cache) {
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api", mw.IPWhitelist(sec.AllowedIPs))
	auth := mw.Auth(sec, c)

	users := api.Group("/users")
	users.POST("", h.Users.Register)
	users.GET("", h.Users.List)
	users.POST("/login", h.Users.Login)
	users.POST("/logout", auth, h.Users.Logout)
	users.GET("/me", auth, h.Users.Me)
	users.GET("/by-username/:username", h.Users.ByUsername)

	fr := api.Group("/friend-request")
	fr.POST("/send", h.FriendRequests.Send)
	fr.POST("/accept/:id", h.FriendRequests.Accept)
	fr.POST("/reject/:id", h.FriendRequests.Reject)
	fr.GET("/pending/:user_id", h.FriendRequests.Pending)
	fr.GET("/friends/:user_id", h.FriendRequests.Friends)

	chatG := api.Group("/chat")
	chatG.POST("/send", h.Chat.Send)
	chatG.GET("/conversation", h.Chat.Conversation)
	chatG.PATCH("/mark-as-read/:id", h.Chat.MarkRead)
}
