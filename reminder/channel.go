package reminder

import (
	"errors"
	"fmt"

	"lexflow/signature"
	"lexflow/tenant"
)

var (
	// ErrNoPhoneNumber means the signer has no phone on file for a phone channel.
	ErrNoPhoneNumber = errors.New("reminder: signer has no phone number")
	// ErrChannelNotProvisioned means the tenant has no provider configured for
	// the channel.
	ErrChannelNotProvisioned = errors.New("reminder: channel not provisioned for tenant")
	// ErrUnknownChannel is returned for a channel outside the supported set.
	ErrUnknownChannel = errors.New("reminder: unknown channel")
)

func enabledForRequest(ch Channel, req signature.Request) bool {
	switch ch {
	case ChannelEmail:
		return req.RemindByEmail
	case ChannelSMS:
		return req.RemindBySMS
	case ChannelWhatsApp:
		return req.RemindByWhatsApp
	}
	return false
}

func enabledForTenant(ch Channel, prefs tenant.Preferences) bool {
	switch ch {
	case ChannelEmail:
		return prefs.EmailEnabled
	case ChannelSMS:
		return prefs.SMSEnabled
	case ChannelWhatsApp:
		return prefs.WhatsAppEnabled
	}
	return false
}

// deliverable reports whether the channel can actually reach the signer.
// Checked both at scheduling time and again at dispatch time.
func deliverable(ch Channel, req signature.Request, prefs tenant.Preferences) error {
	switch ch {
	case ChannelEmail:
		if req.SignerEmail == "" {
			return fmt.Errorf("reminder: signer has no email address")
		}
		return nil
	case ChannelSMS:
		if req.SignerPhone == "" {
			return ErrNoPhoneNumber
		}
		if !prefs.SMSProvisioned {
			return ErrChannelNotProvisioned
		}
		return nil
	case ChannelWhatsApp:
		if req.SignerPhone == "" {
			return ErrNoPhoneNumber
		}
		if !prefs.WhatsAppProvisioned {
			return ErrChannelNotProvisioned
		}
		return nil
	}
	return ErrUnknownChannel
}

// scheduledChannels resolves the channels the scheduler creates entries for:
// enabled by both the tenant and the request, and deliverable.
func scheduledChannels(req signature.Request, prefs tenant.Preferences) []Channel {
	channels := make([]Channel, 0, len(AllChannels))
	for _, ch := range AllChannels {
		if !enabledForRequest(ch, req) || !enabledForTenant(ch, prefs) {
			continue
		}
		if deliverable(ch, req, prefs) != nil {
			continue
		}
		channels = append(channels, ch)
	}
	return channels
}

// requestChannels resolves the channels immediate-send attempts: every channel
// the request itself enables. Deliverability problems surface as per-channel
// dispatch failures rather than silent filtering.
func requestChannels(req signature.Request) []Channel {
	channels := make([]Channel, 0, len(AllChannels))
	for _, ch := range AllChannels {
		if enabledForRequest(ch, req) {
			channels = append(channels, ch)
		}
	}
	return channels
}
