package worker

import (
	"math/rand/v2"
	"time"
)

const (
	backoffBase = 2 * time.Second
	backoffCap  = 5 * time.Minute
)

// ExponentialBackoff is the delay before retry number attempt+1:
// 2s, 4s, 8s ... capped at five minutes, plus up to 250ms of jitter.
func ExponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := backoffCap
	if attempt < 20 {
		delay = backoffBase << attempt
		if delay > backoffCap {
			delay = backoffCap
		}
	}

	// jitter keeps retries from a shared outage from landing together
	return delay + time.Duration(rand.N(250))*time.Millisecond
}
