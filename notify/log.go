package notify

import (
	"context"

	"lexflow/reminder"

	"github.com/sirupsen/logrus"
)

// LogEmailSender logs instead of delivering. Wired when no email provider is
// configured, so the engine stays runnable in development.
type LogEmailSender struct {
	Log *logrus.Logger
}

func (s *LogEmailSender) Send(_ context.Context, to, subject, _ string) error {
	s.Log.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Info("email send (log-only transport)")
	return nil
}

// LogTextSender logs instead of delivering SMS/WhatsApp messages.
type LogTextSender struct {
	Log  *logrus.Logger
	Kind string
}

func (s *LogTextSender) Send(_ context.Context, tenantID, to, text string) (reminder.TextResult, error) {
	s.Log.WithFields(logrus.Fields{
		"kind":      s.Kind,
		"tenant_id": tenantID,
		"to":        to,
		"length":    len(text),
	}).Info("text send (log-only transport)")
	return reminder.TextResult{ProviderStatus: "logged"}, nil
}
