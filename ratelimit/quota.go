package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// quota is what one response said about the bucket. Nil fields were absent
// or unparsable.
type quota struct {
	limit      *int
	remaining  *int
	resetAt    *time.Time
	retryAfter *time.Duration
}

func readQuota(headers map[string]string, now time.Time) quota {
	q := quota{
		limit:     headerInt(headers, "X-RateLimit-Limit"),
		remaining: headerInt(headers, "X-RateLimit-Remaining"),
	}
	if reset := headerInt64(headers, "X-RateLimit-Reset"); reset != nil && *reset > 0 {
		at := time.Unix(*reset, 0).UTC()
		q.resetAt = &at
	}
	q.retryAfter = retryAfter(header(headers, "Retry-After"), now)
	return q
}

// exhausted is true when the response reported a quota and nothing is left.
func (q quota) exhausted(remaining int) bool {
	reported := q.limit != nil || q.remaining != nil || q.resetAt != nil || q.retryAfter != nil
	return reported && remaining == 0
}

// retryAfter accepts delta seconds or an HTTP date in the future.
func retryAfter(raw string, now time.Time) *time.Duration {
	if raw == "" {
		return nil
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return nil
		}
		delay := time.Duration(seconds) * time.Second
		return &delay
	}
	at, err := http.ParseTime(raw)
	if err != nil || !at.After(now) {
		return nil
	}
	delay := at.Sub(now)
	return &delay
}

func headerInt(headers map[string]string, name string) *int {
	value, err := strconv.Atoi(header(headers, name))
	if err != nil {
		return nil
	}
	return &value
}

func headerInt64(headers map[string]string, name string) *int64 {
	value, err := strconv.ParseInt(header(headers, name), 10, 64)
	if err != nil {
		return nil
	}
	return &value
}

func header(headers map[string]string, name string) string {
	for key, value := range headers {
		if strings.EqualFold(strings.TrimSpace(key), name) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
