package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gamewrld/server/audit"
	mw "github.com/gamewrld/server/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func abortJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// internalError logs err with the request's trace id and answers a bare 500.
func internalError(c *gin.Context, logger *zap.Logger, op string, err error) {
	logger.Error(op,
		zap.String("trace_id", mw.GetTraceID(c)),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	abortJSON(c, http.StatusInternalServerError, "internal error")
}

// pathID parses a positive int64 path parameter, answering 400 otherwise.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		abortJSON(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// trail records audit entries for a handler. A nil recorder disables it.
type trail struct {
	rec audit.Recorder
}

func (t trail) record(c *gin.Context, start time.Time, action string, userID int64, req, resp interface{}, err error) {
	if t.rec == nil {
		return
	}
	entry := audit.Entry{
		TraceID:    mw.GetTraceID(c),
		Action:     action,
		Request:    req,
		Response:   resp,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	}
	if userID != 0 {
		entry.UserID = &userID
	}
	if err != nil {
		entry.Error = err.Error()
	}
	t.rec.Log(entry)
}
