package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// tokenBucket refills continuously at the limiter's rate, capped at the
// enforcement window's worth of tokens.
type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// RateLimiter is a partitioned token-bucket limiter. Buckets are keyed
// (per IP or per route) and grouped into time partitions so idle keys
// are dropped wholesale when their partition rotates out, instead of
// being swept individually.
type RateLimiter struct {
	mu               sync.Mutex
	perSecond        float64
	maxTokens        float64
	partitionSeconds int64
	activePartitions int64
	partitions       map[int64]map[string]*tokenBucket
	now              func() time.Time
}

// NewRateLimiter builds a limiter allowing perSecond sustained requests
// per key, with bursts bounded by perSecond * window. Keys idle for more
// than activePartitions partitions are evicted.
func NewRateLimiter(perSecond float64, window, partition time.Duration, activePartitions int) *RateLimiter {
	return &RateLimiter{
		perSecond:        perSecond,
		maxTokens:        perSecond * window.Seconds(),
		partitionSeconds: int64(partition.Seconds()),
		activePartitions: int64(activePartitions),
		partitions:       make(map[int64]map[string]*tokenBucket),
		now:              time.Now,
	}
}

// Allow reports whether a request for key may proceed, consuming one
// token if so.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	current := now.Unix() / l.partitionSeconds

	l.evictStale(current)

	bucket := l.takeBucket(key, current, now)

	elapsed := now.Sub(bucket.lastRefill).Seconds()
	bucket.tokens += elapsed * l.perSecond
	if bucket.tokens > l.maxTokens {
		bucket.tokens = l.maxTokens
	}
	bucket.lastRefill = now

	if bucket.tokens < 1 {
		return false
	}
	bucket.tokens--
	return true
}

// evictStale drops whole partitions that rotated out of the active set.
func (l *RateLimiter) evictStale(current int64) {
	oldest := current - l.activePartitions + 1
	for id := range l.partitions {
		if id < oldest {
			delete(l.partitions, id)
		}
	}
}

// takeBucket finds the key's bucket in any active partition and moves it
// to the current one, creating a full bucket on first sight of the key.
func (l *RateLimiter) takeBucket(key string, current int64, now time.Time) *tokenBucket {
	for id, part := range l.partitions {
		bucket, ok := part[key]
		if !ok {
			continue
		}
		if id != current {
			delete(part, key)
			l.partition(current)[key] = bucket
		}
		return bucket
	}

	bucket := &tokenBucket{tokens: l.maxTokens, lastRefill: now}
	l.partition(current)[key] = bucket
	return bucket
}

func (l *RateLimiter) partition(id int64) map[string]*tokenBucket {
	part, ok := l.partitions[id]
	if !ok {
		part = make(map[string]*tokenBucket)
		l.partitions[id] = part
	}
	return part
}

// RateLimitByIP throttles per originating address.
func RateLimitByIP(l *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
			})
			return
		}
		c.Next()
	}
}

// RateLimitByRoute throttles per route template, shared by all callers.
func RateLimitByRoute(l *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.FullPath()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
			})
			return
		}
		c.Next()
	}
}
