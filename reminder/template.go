package reminder

import (
	"regexp"
	"strconv"
	"time"

	"lexflow/signature"
	"lexflow/tenant"
)

// TemplateData is the substitution context for reminder messages.
type TemplateData struct {
	SignerName       string
	OrganizationName string
	DocumentTitle    string
	ExpiryDate       string
	DaysRemaining    int
}

const expiryDateFormat = "January 2, 2006"

func buildTemplateData(req signature.Request, prefs tenant.Preferences, now time.Time) TemplateData {
	data := TemplateData{
		SignerName:       req.SignerName,
		OrganizationName: prefs.OrganizationName,
		DocumentTitle:    req.DocumentTitle,
	}
	if req.ExpiresAt != nil {
		data.ExpiryDate = req.ExpiresAt.Format(expiryDateFormat)
		data.DaysRemaining = daysUntil(*req.ExpiresAt, now)
	}
	return data
}

// daysUntil is the ceiling of the remaining duration in days, floored at zero.
func daysUntil(expiry, now time.Time) int {
	remaining := expiry.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) != 0 {
		days++
	}
	return days
}

func (d TemplateData) values() map[string]string {
	return map[string]string{
		"signer_name":       d.SignerName,
		"organization_name": d.OrganizationName,
		"document_title":    d.DocumentTitle,
		"expiry_date":       d.ExpiryDate,
		"days_remaining":    strconv.Itoa(d.DaysRemaining),
	}
}

var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

// RenderTemplate substitutes {placeholder} tokens with context values.
// Unresolved placeholders become empty strings so template syntax never leaks
// to a signer.
func RenderTemplate(tpl string, data TemplateData) string {
	values := data.values()
	return placeholderPattern.ReplaceAllStringFunc(tpl, func(token string) string {
		return values[token[1 : len(token)-1]]
	})
}

// Built-in templates, used when the tenant has no override for the channel.
// The urgent variants apply when one day or less remains before expiry.
const (
	defaultEmailTemplate = `<p>Hello {signer_name},</p>` +
		`<p>This is a friendly reminder that the document <strong>{document_title}</strong> ` +
		`from {organization_name} is awaiting your signature.</p>` +
		`<p>Please sign before {expiry_date}.</p>`

	urgentEmailTemplate = `<p>Hello {signer_name},</p>` +
		`<p><strong>Action required:</strong> the document <strong>{document_title}</strong> ` +
		`from {organization_name} expires on {expiry_date} ({days_remaining} day(s) left).</p>` +
		`<p>Please sign it as soon as possible.</p>`

	defaultTextTemplate = `Hello {signer_name}, "{document_title}" from {organization_name} ` +
		`is awaiting your signature. Please sign before {expiry_date}.`

	urgentTextTemplate = `Urgent: {signer_name}, "{document_title}" from {organization_name} ` +
		`expires on {expiry_date} ({days_remaining} day(s) left). Please sign now.`
)

func defaultTemplate(ch Channel, urgent bool) string {
	if ch == ChannelEmail {
		if urgent {
			return urgentEmailTemplate
		}
		return defaultEmailTemplate
	}
	if urgent {
		return urgentTextTemplate
	}
	return defaultTextTemplate
}

func emailSubject(req signature.Request, urgent bool) string {
	if urgent {
		return "Signature required soon: " + req.DocumentTitle
	}
	return "Reminder: please sign " + req.DocumentTitle
}
