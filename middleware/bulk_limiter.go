package middleware

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/apperrors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"
)

// ErrTooManyBulkRequests is returned when every bulk slot stays busy for the whole wait
var ErrTooManyBulkRequests = errors.New("too many concurrent bulk requests, please try again later")

const (
	DefaultMaxInflightBulk = 4
	DefaultBulkQueueWait   = 10 * time.Second
)

// BulkLimiter caps how many bulk runs execute at once in this process
type BulkLimiter struct {
	sem     *semaphore.Weighted
	max     int64
	maxWait time.Duration
	active  atomic.Int64
}

func NewBulkLimiter(maxInflight int, maxWait time.Duration) *BulkLimiter {
	if maxInflight <= 0 {
		maxInflight = DefaultMaxInflightBulk
	}
	if maxWait <= 0 {
		maxWait = DefaultBulkQueueWait
	}
	return &BulkLimiter{
		sem:     semaphore.NewWeighted(int64(maxInflight)),
		max:     int64(maxInflight),
		maxWait: maxWait,
	}
}

// Acquire waits up to maxWait for a slot. The caller must Release on success.
func (l *BulkLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyBulkRequests
	}
	l.active.Add(1)
	return nil
}

// TryAcquire takes a slot without waiting
func (l *BulkLimiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.active.Add(1)
	return true
}

func (l *BulkLimiter) Release() {
	l.active.Add(-1)
	l.sem.Release(1)
}

// ActiveCount returns the number of bulk runs holding a slot
func (l *BulkLimiter) ActiveCount() int {
	return int(l.active.Load())
}

// WaitForDrain blocks until every slot is free or ctx ends. Slots stay held
// afterwards so no new bulk run can start during shutdown.
func (l *BulkLimiter) WaitForDrain(ctx context.Context) error {
	return l.sem.Acquire(ctx, l.max)
}

// Middleware admits a request only while a slot is available. A free slot is
// taken immediately; otherwise the request waits up to maxWait.
func (l *BulkLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.TryAcquire() {
			if err := l.Acquire(c.Request.Context()); err != nil {
				appErr := apperrors.ErrTooManyRequests.Wrap(err)
				c.AbortWithStatusJSON(appErr.Code, appErr.Body())
				return
			}
		}
		defer l.Release()
		c.Next()
	}
}
