package friend

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gamewrld/server/model"
	"github.com/gamewrld/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func nopLogger() *zap.Logger { return zap.NewNop() }

func setup(t *testing.T) (*Service, *gorm.DB, *model.User, *model.User) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	a := testutil.CreateUser(t, db, "alice")
	b := testutil.CreateUser(t, db, "bob")
	return NewService(db, nopLogger()), db, a, b
}

func countFriends(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.Friend{}).Count(&n).Error)
	return n
}

func TestSend_CreatesPending(t *testing.T) {
	svc, db, a, b := setup(t)
	ctx := context.Background()

	req, err := svc.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Greater(t, req.ID, int64(0))
	assert.Equal(t, model.FriendRequestPending, req.Status)
	assert.WithinDuration(t, time.Now(), req.SentAt, 5*time.Second)

	var rows []model.FriendRequest
	require.NoError(t, db.Where("sender_id = ? AND receiver_id = ? AND status = ?",
		a.ID, b.ID, model.FriendRequestPending).Find(&rows).Error)
	assert.Len(t, rows, 1)
}

func TestSend_UnknownUser(t *testing.T) {
	svc, _, a, _ := setup(t)

	_, err := svc.Send(context.Background(), a.ID, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.Send(context.Background(), 9999, a.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSend_Self(t *testing.T) {
	svc, _, a, _ := setup(t)
	_, err := svc.Send(context.Background(), a.ID, a.ID)
	assert.ErrorIs(t, err, ErrSelfRequest)
}

func TestSend_DuplicatePending(t *testing.T) {
	svc, db, a, b := setup(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = svc.Send(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	var n int64
	db.Model(&model.FriendRequest{}).Where("status = ?", model.FriendRequestPending).Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestSend_ConcurrentDuplicates(t *testing.T) {
	svc, db, a, b := setup(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Send(context.Background(), a.ID, b.ID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrDuplicateRequest)
		}
	}
	assert.Equal(t, 1, ok)

	var n int64
	db.Model(&model.FriendRequest{}).Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestSend_ReverseDirectionAllowed(t *testing.T) {
	svc, _, a, b := setup(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = svc.Send(ctx, b.ID, a.ID)
	assert.NoError(t, err)
}

func TestSend_AlreadyFriends(t *testing.T) {
	svc, _, a, b := setup(t)
	ctx := context.Background()

	req, err := svc.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)
	ok, err := svc.Accept(ctx, req.ID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.Send(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, ErrAlreadyFriends)
	_, err = svc.Send(ctx, b.ID, a.ID)
	assert.ErrorIs(t, err, ErrAlreadyFriends)
}

func TestSend_AfterReject(t *testing.T) {
	svc, _, a, b := setup(t)
	ctx := context.Background()

	req, err := svc.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)
	ok, err := svc.Reject(ctx, req.ID)
	require.NoError(t, err)
	require.True(t, ok)

	again, err := svc.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.NotEqual(t, req.ID, again.ID)
}

func TestAccept_MaterializesSymmetricFriendship(t *testing.T) {
	svc, db, a, b := setup(t)
	ctx := context.Background()

	req, err := svc.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)

	ok, err := svc.Accept(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// The request row is gone.
	var left int64
	db.Model(&model.FriendRequest{}).Where("id = ?", req.ID).Count(&left)
	assert.Equal(t, int64(0), left)

	var edges []model.Friend
	require.NoError(t, db.Order("id").Find(&edges).Error)
	require.Len(t, edges, 2)
	assert.Equal(t, a.ID, edges[0].UserID)
	assert.Equal(t, b.ID, edges[0].FriendID)
	assert.Equal(t, b.ID, edges[1].UserID)
	assert.Equal(t, a.ID, edges[1].FriendID)

	for _, pair := range [][2]int64{{a.ID, b.ID}, {b.ID, a.ID}} {
		views, err := svc.Friends(ctx, pair[0])
		require.NoError(t, err)
		found := false
		for _, v := range views {
			if v.UserID == pair[0] && v.FriendID == pair[1] {
				found = true
			}
		}
		assert.True(t, found, "user %d should see an edge to %d", pair[0], pair[1])
	}
}

func TestAccept_Twice(t *testing.T) {
	svc, db, a, b := setup(t)
	ctx := context.Background()

	req, err := svc.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)

	ok, err := svc.Accept(ctx, req.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.Accept(ctx, req.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(2), countFriends(t, db))
}

func TestAccept_Concurrent(t *testing.T) {
	svc, db, a, b := setup(t)
	ctx := context.Background()

	req, err := svc.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := svc.Accept(ctx, req.ID)
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, int64(2), countFriends(t, db))
}

func TestAccept_NotFound(t *testing.T) {
	svc, _, _, _ := setup(t)
	ok, err := svc.Accept(context.Background(), 12345)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccept_Rejected(t *testing.T) {
	svc, db, a, b := setup(t)
	ctx := context.Background()

	req, err := svc.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = svc.Reject(ctx, req.ID)
	require.NoError(t, err)

	ok, err := svc.Accept(ctx, req.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), countFriends(t, db))
}

func TestAccept_CrossedRequests(t *testing.T) {
	svc, db, a, b := setup(t)
	ctx := context.Background()

	ab, err := svc.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)
	ba, err := svc.Send(ctx, b.ID, a.ID)
	require.NoError(t, err)

	ok, err := svc.Accept(ctx, ab.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// The crossed request still resolves, without duplicating the edge.
	ok, err = svc.Accept(ctx, ba.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), countFriends(t, db))
}

func TestReject_KeepsRow(t *testing.T) {
	svc, db, a, b := setup(t)
	ctx := context.Background()

	req, err := svc.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)

	ok, err := svc.Reject(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	var rows []model.FriendRequest
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, model.FriendRequestRejected, rows[0].Status)
	assert.Nil(t, rows[0].PendingKey)
	assert.Equal(t, int64(0), countFriends(t, db))

	ok, err = svc.Reject(ctx, req.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReject_NotFound(t *testing.T) {
	svc, _, _, _ := setup(t)
	ok, err := svc.Reject(context.Background(), 777)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPending_ListsIncomingOnly(t *testing.T) {
	svc, db, a, b := setup(t)
	c := testutil.CreateUser(t, db, "carol")
	ctx := context.Background()

	_, err := svc.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = svc.Send(ctx, c.ID, b.ID)
	require.NoError(t, err)
	_, err = svc.Send(ctx, b.ID, c.ID)
	require.NoError(t, err)

	views, err := svc.Pending(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "alice", views[0].SenderName)
	assert.Equal(t, "bob", views[0].ReceiverName)
	assert.Equal(t, "carol", views[1].SenderName)
	for _, v := range views {
		assert.Equal(t, model.FriendRequestPending, v.Status)
		assert.Equal(t, b.ID, v.ReceiverID)
	}
}

func TestPending_ExcludesResolved(t *testing.T) {
	svc, _, a, b := setup(t)
	ctx := context.Background()

	req, err := svc.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = svc.Reject(ctx, req.ID)
	require.NoError(t, err)

	views, err := svc.Pending(ctx, b.ID)
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestFriends_Empty(t *testing.T) {
	svc, _, a, _ := setup(t)
	views, err := svc.Friends(context.Background(), a.ID)
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestFriends_IncludesNames(t *testing.T) {
	svc, _, a, b := setup(t)
	ctx := context.Background()

	req, err := svc.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = svc.Accept(ctx, req.ID)
	require.NoError(t, err)

	views, err := svc.Friends(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	names := map[string]bool{}
	for _, v := range views {
		names[v.UserName+"->"+v.FriendName] = true
	}
	assert.True(t, names["alice->bob"])
	assert.True(t, names["bob->alice"])
}

func TestAccept_CancelledContext(t *testing.T) {
	svc, _, a, b := setup(t)
	req, err := svc.Send(context.Background(), a.ID, b.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Accept(ctx, req.ID)
	assert.Error(t, err)
}
