package scm

import (
	"log"
	"strings"
	"time"
)

const (
	defaultMaxRetries   = 5
	defaultInitialDelay = 1 * time.Second
)

// RetryWithBackoff executes fn with exponential backoff, retrying only
// transient errors. Permanent errors (auth, 404, validation) fail
// immediately.
func RetryWithBackoff(fn func() error) error {
	return retryWithBackoffCustom(defaultMaxRetries, defaultInitialDelay, fn)
}

func retryWithBackoffCustom(maxRetries int, initialDelay time.Duration, fn func() error) error {
	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("[Retry] Attempt %d/%d after %v delay", attempt+1, maxRetries+1, delay)
			time.Sleep(delay)
			delay *= 2
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !IsRetryableError(lastErr) {
			return lastErr
		}
	}

	log.Printf("[Retry] All %d attempts failed, giving up", maxRetries+1)
	return lastErr
}

// IsRetryableError reports whether an error looks like a transient network
// or throttling failure worth retrying.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	retryablePatterns := []string{
		"eof",
		"timeout",
		"connection refused",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"too many requests",
		"rate limit",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
