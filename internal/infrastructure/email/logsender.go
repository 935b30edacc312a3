package email

import (
	"context"

	"go.uber.org/zap"
)

// LogSender stands in for SendGrid when no API key is configured. It writes
// each message to the log instead.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendWelcome(_ context.Context, to, username string) error {
	s.log.Info("welcome email", zap.String("to", to), zap.String("username", username))
	return nil
}

func (s *LogSender) SendPasswordReset(_ context.Context, to, token string) error {
	s.log.Info("password reset email", zap.String("to", to), zap.String("token", token))
	return nil
}

func (s *LogSender) SendPasswordChanged(_ context.Context, to string) error {
	s.log.Info("password changed email", zap.String("to", to))
	return nil
}
