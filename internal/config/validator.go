package config

import (
	"fmt"
	"strings"
)

// Validator collects configuration errors and warnings.
type Validator struct {
	config   *Config
	errors   []string
	warnings []string
}

func NewValidator(cfg *Config) *Validator {
	return &Validator{config: cfg}
}

// Validate returns an error listing every hard problem. Warnings are kept for Warnings().
func (v *Validator) Validate() error {
	v.errors = v.errors[:0]
	v.warnings = v.warnings[:0]
	if v.config == nil {
		return fmt.Errorf("config validation failed:\nconfiguration is nil")
	}
	prod := v.config.App.IsProduction()

	v.validateDatabase()
	v.validateTicket()
	v.validateSecrets(prod)
	v.validateMailboxes()

	if _, err := v.config.App.Location(); err != nil {
		v.errors = append(v.errors, fmt.Sprintf("app.timezone %q: %v", v.config.App.Timezone, err))
	}

	if len(v.errors) > 0 {
		return fmt.Errorf("config validation failed:\n%s", strings.Join(v.errors, "\n"))
	}
	return nil
}

// Warnings returns the non-fatal findings of the last Validate call.
func (v *Validator) Warnings() []string {
	return append([]string(nil), v.warnings...)
}

func (v *Validator) validateDatabase() {
	if _, err := v.config.Database.GetDSN(); err != nil {
		v.errors = append(v.errors, "database: "+err.Error())
	}
}

func (v *Validator) validateTicket() {
	t := v.config.Ticket
	if strings.TrimSpace(t.NumberPrefix) == "" {
		v.errors = append(v.errors, "ticket.number_prefix must not be empty")
	}
	switch t.CounterStore {
	case "database", "redis", "memory":
	default:
		v.errors = append(v.errors, fmt.Sprintf("ticket.counter_store %q is not one of database, redis, memory", t.CounterStore))
	}
	if t.ThreadWindow <= 0 {
		v.errors = append(v.errors, "ticket.thread_window must be positive")
	}
}

func (v *Validator) validateSecrets(prod bool) {
	if v.config.Webhook.InboundSecret == "" {
		v.addFinding("webhook.inbound_secret is not set; the inbound webhook accepts unauthenticated calls", prod)
	}
	if v.config.Auth.JWTSecret == "" {
		v.addFinding("auth.jwt_secret is not set; the notification stream is disabled", false)
	} else if len(v.config.Auth.JWTSecret) < 32 {
		v.addFinding("auth.jwt_secret should be at least 32 characters long", prod)
	}
	if v.config.Webhook.Outbound.Enabled {
		for i, ep := range v.config.Webhook.Outbound.Endpoints {
			if ep.URL == "" {
				v.errors = append(v.errors, fmt.Sprintf("webhook.outbound.endpoints[%d].url is empty", i))
			}
			if ep.Secret == "" {
				v.addFinding(fmt.Sprintf("webhook.outbound.endpoints[%d] has no signing secret", i), false)
			}
		}
	}
}

func (v *Validator) validateMailboxes() {
	for i, mb := range v.config.Mailboxes {
		if !mb.Enabled {
			continue
		}
		if mb.Host == "" || mb.Username == "" {
			v.errors = append(v.errors, fmt.Sprintf("mailboxes[%d] (%s) needs host and username", i, mb.Name))
		}
		switch strings.ToLower(mb.Type) {
		case "imap", "imaps", "pop3", "pop3s":
		default:
			v.errors = append(v.errors, fmt.Sprintf("mailboxes[%d] (%s) has unsupported type %q", i, mb.Name, mb.Type))
		}
	}
}

func (v *Validator) addFinding(msg string, fatal bool) {
	if fatal {
		v.errors = append(v.errors, msg)
		return
	}
	v.warnings = append(v.warnings, msg)
}
