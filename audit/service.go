// Package audit persists a trail of social actions (friend requests, their
// resolution, messages) without blocking the request that produced them.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gamewrld/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actions recorded by the REST layer.
const (
	ActionUserRegister    = "user.register"
	ActionUserLogin       = "user.login"
	ActionFriendSend      = "friend.send"
	ActionFriendAccept    = "friend.accept"
	ActionFriendReject    = "friend.reject"
	ActionMessageSend     = "message.send"
	ActionMessageMarkRead = "message.mark_read"
)

const (
	queueSize     = 1024
	batchSize     = 100
	flushInterval = 2 * time.Second
)

// Entry is one audit event.
type Entry struct {
	TraceID    string
	UserID     *int64
	Action     string
	Request    interface{}
	Response   interface{}
	Error      string
	IP         string
	DurationMs int
}

// Recorder accepts audit entries. *Service implements it.
type Recorder interface {
	Log(entry Entry)
}

// Service writes audit entries asynchronously in batches.
type Service struct {
	db       *gorm.DB
	ch       chan *model.AuditLog
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New creates an audit Service and starts its background writer.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.AuditLog, queueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues an entry. When the queue is full or the service is stopped
// the entry is dropped with a warning.
func (svc *Service) Log(entry Entry) {
	select {
	case <-svc.stopCh:
		svc.logger.Warn("audit stopped, dropping entry", zap.String("action", entry.Action))
		return
	default:
	}

	record := &model.AuditLog{
		TraceID:    entry.TraceID,
		UserID:     entry.UserID,
		Action:     entry.Action,
		Request:    toJSON(entry.Request),
		Response:   toJSON(entry.Response),
		Error:      entry.Error,
		IP:         entry.IP,
		DurationMs: entry.DurationMs,
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("audit queue full, dropping entry",
			zap.String("action", entry.Action),
			zap.String("trace_id", entry.TraceID))
	}
}

// Stop flushes queued entries and waits for the writer to exit.
// Calling it more than once is safe.
func (svc *Service) Stop(_ context.Context) {
	svc.stopOnce.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed",
				zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-svc.ch:
			batch = append(batch, rec)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case rec := <-svc.ch:
					batch = append(batch, rec)
					if len(batch) >= batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Prune deletes audit rows created before cutoff and returns how many went.
func (svc *Service) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := svc.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.AuditLog{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		svc.logger.Info("audit rows pruned",
			zap.Int64("rows", res.RowsAffected), zap.Time("cutoff", cutoff))
	}
	return res.RowsAffected, nil
}

func toJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
