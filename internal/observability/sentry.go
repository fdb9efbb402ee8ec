package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry configures error reporting. An empty DSN disables it.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

// FlushSentry drains buffered events before shutdown.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
