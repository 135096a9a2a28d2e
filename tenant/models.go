package tenant

// Preferences holds a tenant's reminder configuration: which channels are
// switched on, when reminders fire relative to expiry, message overrides, and
// which paid channels the tenant has actually provisioned.
type Preferences struct {
	TenantID         string
	OrganizationName string

	EmailEnabled    bool
	SMSEnabled      bool
	WhatsAppEnabled bool

	// Provisioning is separate from enablement: a tenant can toggle SMS on in
	// settings without having provider credentials configured yet.
	SMSProvisioned      bool
	WhatsAppProvisioned bool

	// ReminderOffsetsDays lists how many days before expiry a reminder fires,
	// e.g. [7,3,1]. Empty means DefaultOffsetsDays.
	ReminderOffsetsDays []int

	// Templates maps a channel name (see reminder.Channel) to a message
	// template override. Missing keys fall back to the built-in defaults.
	Templates map[string]string
}

// DefaultOffsetsDays is used when a tenant has not configured offsets.
var DefaultOffsetsDays = []int{7, 3, 1}

// Offsets returns the configured day-offsets or the default set.
func (p Preferences) Offsets() []int {
	if len(p.ReminderOffsetsDays) == 0 {
		return DefaultOffsetsDays
	}
	return p.ReminderOffsetsDays
}

// Template returns the tenant override for the channel, if any.
func (p Preferences) Template(channel string) (string, bool) {
	t, ok := p.Templates[channel]
	return t, ok && t != ""
}
