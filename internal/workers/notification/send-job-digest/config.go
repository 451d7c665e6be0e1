package sendjobdigest

import (
	"time"

	"job-notifier/internal/matching"
)

type Config struct {
	Timeout  time.Duration
	Matching matching.Options
}
