package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/d60-Lab/shipdesk/config"
)

// InitSentry DSN 为空时不启用
func InitSentry(cfg config.SentryConfig) error {
	if cfg.DSN == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		AttachStacktrace: true,
	})
}

// Flush 退出前等待事件发送
func Flush() {
	sentry.Flush(2 * time.Second)
}
