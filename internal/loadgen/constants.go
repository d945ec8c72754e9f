package loadgen

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Submission retry constants. A 429 means the queue is full; the request is
// retried after a growing pause.
const (
	maxSubmitAttempts = 8
	retryBaseDelay    = 10 * time.Millisecond
)

// Runner configuration constants.
const (
	settlePollInterval   = 50 * time.Millisecond
	PercentageMultiplier = 100
)
