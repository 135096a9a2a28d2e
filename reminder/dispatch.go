package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lexflow/signature"
	"lexflow/tenant"
)

// ErrTransportNotConfigured means no sender was wired for the channel.
var ErrTransportNotConfigured = errors.New("reminder: transport not configured")

// EmailSender is the external email transport.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// TextResult carries the provider-reported status for a text send.
type TextResult struct {
	ProviderStatus string
}

// TextSender is the external SMS/WhatsApp transport. Tenant-scoped provider
// credentials are resolved by the transport, not by the engine.
type TextSender interface {
	Send(ctx context.Context, tenantID, to, text string) (TextResult, error)
}

// Dispatcher builds the channel-specific message for a request and hands it to
// the channel's transport. It owns template selection and rendering; it does
// not own retries or queue state.
type Dispatcher struct {
	email    EmailSender
	sms      TextSender
	whatsapp TextSender
	timeout  time.Duration
	now      func() time.Time
}

func NewDispatcher(email EmailSender, sms, whatsapp TextSender, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		email:    email,
		sms:      sms,
		whatsapp: whatsapp,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Dispatch sends one reminder on one channel. Every send runs under the
// dispatcher timeout so an unresponsive provider cannot stall a sweep; a
// timed-out send is an ordinary dispatch failure.
func (d *Dispatcher) Dispatch(ctx context.Context, req signature.Request, prefs tenant.Preferences, ch Channel) error {
	if err := deliverable(ch, req, prefs); err != nil {
		return err
	}

	now := d.now()
	data := buildTemplateData(req, prefs, now)
	urgent := data.DaysRemaining <= 1

	tpl, ok := prefs.Template(string(ch))
	if !ok {
		tpl = defaultTemplate(ch, urgent)
	}
	body := RenderTemplate(tpl, data)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	switch ch {
	case ChannelEmail:
		if d.email == nil {
			return ErrTransportNotConfigured
		}
		if err := d.email.Send(ctx, req.SignerEmail, emailSubject(req, urgent), body); err != nil {
			return fmt.Errorf("reminder: email send: %w", err)
		}
		return nil
	case ChannelSMS:
		if d.sms == nil {
			return ErrTransportNotConfigured
		}
		res, err := d.sms.Send(ctx, req.TenantID, req.SignerPhone, body)
		if err != nil {
			return wrapTextError("sms", res, err)
		}
		return nil
	case ChannelWhatsApp:
		if d.whatsapp == nil {
			return ErrTransportNotConfigured
		}
		res, err := d.whatsapp.Send(ctx, req.TenantID, req.SignerPhone, body)
		if err != nil {
			return wrapTextError("whatsapp", res, err)
		}
		return nil
	}
	return ErrUnknownChannel
}

func wrapTextError(kind string, res TextResult, err error) error {
	if res.ProviderStatus != "" {
		return fmt.Errorf("reminder: %s send (provider status %s): %w", kind, res.ProviderStatus, err)
	}
	return fmt.Errorf("reminder: %s send: %w", kind, err)
}
