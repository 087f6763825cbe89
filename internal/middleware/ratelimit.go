// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	ReasonRateLimit  = "rate_limit"
	ReasonAntiRepeat = "anti_repeat"

	maxHashedBody = 10 << 20
)

// RateLimitPolicy bounds requests per key in a sliding window. AntiRepeat
// additionally refuses an identical payload from the same key within that
// span; zero disables it.
type RateLimitPolicy struct {
	Name        string
	Window      time.Duration
	MaxRequests int
	AntiRepeat  time.Duration
}

var (
	LoginPolicy = RateLimitPolicy{Name: "login", Window: 5 * time.Minute, MaxRequests: 10}
	AIPolicy    = RateLimitPolicy{Name: "ai", Window: time.Minute, MaxRequests: 20, AntiRepeat: 5 * time.Second}
)

type RateLimitResult struct {
	Allowed     bool
	Reason      string
	WaitSeconds int
}

type RateLimiter interface {
	CheckAndRecord(key, payload string) RateLimitResult
}

type requestEntry struct {
	at      time.Time
	payload string
}

type InMemoryRateLimiter struct {
	policy   RateLimitPolicy
	now      func() time.Time
	mu       sync.Mutex
	requests map[string][]requestEntry
}

func NewInMemoryRateLimiter(policy RateLimitPolicy) *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		policy:   policy,
		now:      time.Now,
		requests: make(map[string][]requestEntry),
	}
}

func (l *InMemoryRateLimiter) WithClock(now func() time.Time) *InMemoryRateLimiter {
	l.now = now
	return l
}

func (l *InMemoryRateLimiter) Policy() RateLimitPolicy {
	return l.policy
}

// RunCleanup drops idle keys every interval until ctx is done.
func (l *InMemoryRateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *InMemoryRateLimiter) cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	removed := 0
	for key, entries := range l.requests {
		l.requests[key] = l.prune(entries, now)
		if len(l.requests[key]) == 0 {
			delete(l.requests, key)
			removed++
		}
	}
	return removed
}

func (l *InMemoryRateLimiter) prune(entries []requestEntry, now time.Time) []requestEntry {
	cutoff := now.Add(-l.policy.Window)
	result := entries[:0]
	for _, e := range entries {
		if !e.at.Before(cutoff) {
			result = append(result, e)
		}
	}
	return result
}

func waitSeconds(until, now time.Time) int {
	secs := int(until.Sub(now).Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (l *InMemoryRateLimiter) CheckAndRecord(key, payload string) RateLimitResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entries := l.prune(l.requests[key], now)
	l.requests[key] = entries

	if len(entries) >= l.policy.MaxRequests {
		return RateLimitResult{
			Reason:      ReasonRateLimit,
			WaitSeconds: waitSeconds(entries[0].at.Add(l.policy.Window), now),
		}
	}

	if l.policy.AntiRepeat > 0 && payload != "" {
		cutoff := now.Add(-l.policy.AntiRepeat)
		for i := len(entries) - 1; i >= 0 && !entries[i].at.Before(cutoff); i-- {
			if entries[i].payload == payload {
				return RateLimitResult{
					Reason:      ReasonAntiRepeat,
					WaitSeconds: waitSeconds(entries[i].at.Add(l.policy.AntiRepeat), now),
				}
			}
		}
	}

	l.requests[key] = append(entries, requestEntry{at: now, payload: payload})
	return RateLimitResult{Allowed: true, Reason: "ok"}
}

// KeyFunc derives the limiter key and the anti-repeat payload for a request.
type KeyFunc func(c *gin.Context) (key, payload string)

// ClientIPKey limits per client address without anti-repeat.
func ClientIPKey(c *gin.Context) (string, string) {
	return c.ClientIP(), ""
}

// UserPayloadKey limits per signed-in user (falling back to the address)
// and fingerprints the request body for anti-repeat. The body is restored
// for the handler.
func UserPayloadKey(c *gin.Context) (string, string) {
	key := c.ClientIP()
	if id := c.GetInt64("user_id"); id != 0 {
		key = "user:" + strconv.FormatInt(id, 10)
	}
	if c.Request.Body == nil {
		return key, ""
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxHashedBody))
	if err != nil {
		return key, ""
	}
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))
	if len(body) == 0 {
		return key, ""
	}
	sum := sha256.Sum256(body)
	return key, c.Request.URL.Path + ":" + hex.EncodeToString(sum[:8])
}

func RateLimit(limiter RateLimiter, keyFn KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key, payload := keyFn(c)
		result := limiter.CheckAndRecord(key, payload)
		if result.Allowed {
			c.Next()
			return
		}

		traceID, _ := c.Get("trace_id")
		slog.Info("Rate limit triggered",
			"trace_id", traceID,
			"key", key,
			"path", c.Request.URL.Path,
			"reason", result.Reason,
			"wait_seconds", result.WaitSeconds,
		)

		msg := fmt.Sprintf("Bạn thao tác quá nhanh. Vui lòng chờ %d giây rồi thử lại.", result.WaitSeconds)
		if result.Reason == ReasonAntiRepeat {
			msg = fmt.Sprintf("Yêu cầu này vừa được gửi. Vui lòng chờ %d giây.", result.WaitSeconds)
		}

		c.Header("Retry-After", strconv.Itoa(result.WaitSeconds))
		if IsAPI(c) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":        msg,
				"reason":       result.Reason,
				"wait_seconds": result.WaitSeconds,
			})
			return
		}
		SetFlash(c, "warning", msg)
		c.Redirect(http.StatusSeeOther, c.Request.URL.Path)
		c.Abort()
	}
}
