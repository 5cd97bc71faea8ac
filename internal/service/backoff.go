package service

import "time"

// Backoff computes the delay before a failed queue item becomes eligible
// again: 2^attemptsSoFar minutes. The first retry lands ~2 minutes after the
// first failure, the second ~4 minutes after the second; with a budget of
// three attempts, exhaustion occurs after the third failed attempt. The
// widening window tolerates short provider outages without indefinitely
// burning resources on undeliverable recipients.
func Backoff(attemptsSoFar int) time.Duration {
	if attemptsSoFar < 1 {
		attemptsSoFar = 1
	}

	delay := time.Minute
	for i := 0; i < attemptsSoFar; i++ {
		delay *= 2
	}

	return delay
}
