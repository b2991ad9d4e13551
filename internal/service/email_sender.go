package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LoggingEmailSender logs dispatched codes instead of sending mail. It backs
// development and test environments; production wires a real delivery
// collaborator behind the same interface.
type LoggingEmailSender struct {
	logger *zap.Logger
}

// NewLoggingEmailSender creates a logging email sender.
func NewLoggingEmailSender(logger *zap.Logger) *LoggingEmailSender {
	return &LoggingEmailSender{logger: logger}
}

func (s *LoggingEmailSender) SendOneTimePassword(_ context.Context, recipient, code string, validFor time.Duration) error {
	s.logger.Info("One-time password dispatched",
		zap.String("recipient", recipient),
		zap.String("code", code),
		zap.Duration("valid_for", validFor),
	)
	return nil
}
