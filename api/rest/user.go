package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gamewrld/server/audit"
	"github.com/gamewrld/server/cache"
	"github.com/gamewrld/server/config"
	"github.com/gamewrld/server/credential"
	dbadapter "github.com/gamewrld/server/db"
	mw "github.com/gamewrld/server/middleware"
	"github.com/gamewrld/server/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cacheTimeout = 2 * time.Second

// UserHandler serves account registration, login sessions and user lookup.
type UserHandler struct {
	db     *gorm.DB
	cache  cache.Cache
	sec    config.SecurityConfig
	trail  trail
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler. rec may be nil.
func NewUserHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig, rec audit.Recorder, logger *zap.Logger) *UserHandler {
	return &UserHandler{db: db, cache: c, sec: sec, trail: trail{rec: rec}, logger: logger}
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
	Email    string `json:"email" binding:"required,email,max=128"`
	Password string `json:"password" binding:"required,min=4,max=64"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
	Password string `json:"password" binding:"required,min=4,max=64"`
}

type userResponse struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// Register handles POST /api/users.
func (h *UserHandler) Register(c *gin.Context) {
	start := time.Now()
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	hash, err := credential.Hash(req.Password, h.sec.BcryptCost)
	if err != nil {
		internalError(c, h.logger, "hash password", err)
		return
	}
	user := &model.User{Username: req.Username, Email: req.Email, PasswordHash: hash}
	if err := h.db.WithContext(c.Request.Context()).Create(user).Error; err != nil {
		if dbadapter.IsUniqueViolation(err) {
			abortJSON(c, http.StatusConflict, "username already taken")
			return
		}
		internalError(c, h.logger, "create user", err)
		return
	}

	resp := userResponse{UserID: user.ID, Username: user.Username}
	h.trail.record(c, start, audit.ActionUserRegister, user.ID,
		gin.H{"username": req.Username, "email": req.Email}, resp, nil)
	c.JSON(http.StatusCreated, resp)
}

// Login handles POST /api/users/login. A successful login stores the session
// in the cache for the token's lifetime.
func (h *UserHandler) Login(c *gin.Context) {
	start := time.Now()
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	var user model.User
	err := h.db.WithContext(c.Request.Context()).Where("username = ?", req.Username).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		internalError(c, h.logger, "load user", err)
		return
	}
	// Unknown user and wrong password look the same to the client.
	if err != nil || !credential.Verify(req.Password, user.PasswordHash) {
		h.trail.record(c, start, audit.ActionUserLogin, user.ID,
			gin.H{"username": req.Username}, nil, errors.New("invalid credentials"))
		abortJSON(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := mw.GenerateToken(user.ID, user.Username, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		internalError(c, h.logger, "sign token", err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), cacheTimeout)
	defer cancel()
	if err := h.cache.Set(ctx, mw.SessionKey(token), strconv.FormatInt(user.ID, 10), h.sec.JWTTTLH); err != nil {
		internalError(c, h.logger, "store session", err)
		return
	}

	h.trail.record(c, start, audit.ActionUserLogin, user.ID, gin.H{"username": req.Username}, nil, nil)
	c.JSON(http.StatusOK, gin.H{"token": token, "userId": user.ID})
}

// Logout handles POST /api/users/logout. It runs behind Auth.
func (h *UserHandler) Logout(c *gin.Context) {
	token := mw.GetSessionToken(c)
	if token == "" {
		abortJSON(c, http.StatusUnauthorized, "missing token")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), cacheTimeout)
	defer cancel()
	if err := h.cache.Del(ctx, mw.SessionKey(token)); err != nil {
		internalError(c, h.logger, "drop session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// List handles GET /api/users.
func (h *UserHandler) List(c *gin.Context) {
	users := []model.User{}
	if err := h.db.WithContext(c.Request.Context()).Order("id").Find(&users).Error; err != nil {
		internalError(c, h.logger, "list users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// ByUsername handles GET /api/users/by-username/:username.
func (h *UserHandler) ByUsername(c *gin.Context) {
	var user model.User
	err := h.db.WithContext(c.Request.Context()).Where("username = ?", c.Param("username")).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		abortJSON(c, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		internalError(c, h.logger, "load user", err)
		return
	}
	c.JSON(http.StatusOK, userResponse{UserID: user.ID, Username: user.Username})
}

// Me handles GET /api/users/me. It runs behind Auth.
func (h *UserHandler) Me(c *gin.Context) {
	var user model.User
	err := h.db.WithContext(c.Request.Context()).First(&user, mw.GetUserID(c)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		abortJSON(c, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		internalError(c, h.logger, "load user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}
