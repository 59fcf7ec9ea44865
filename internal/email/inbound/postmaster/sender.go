package postmaster

import (
	"regexp"
	"strings"
)

// UnknownSenderName is used when the From header carries no display name.
const UnknownSenderName = "Unknown Sender"

var (
	angleAddrRe = regexp.MustCompile(`<([^<>]+)>`)
	bareEmailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// Sender is the parsed From header of an inbound email.
type Sender struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ParseSender extracts address and display name from a raw From value such
// as `Alice <alice@example.com>`. It never fails: when no address can be
// found the raw value is kept as Email.
func ParseSender(rawFrom string) Sender {
	s := Sender{Email: rawFrom, Name: UnknownSenderName}

	if m := angleAddrRe.FindStringSubmatch(rawFrom); m != nil {
		s.Email = strings.TrimSpace(m[1])
	} else if m := bareEmailRe.FindString(rawFrom); m != "" {
		s.Email = m
	}

	if i := strings.Index(rawFrom, "<"); i >= 0 {
		name := strings.TrimSpace(rawFrom[:i])
		name = strings.TrimSpace(strings.Trim(name, `"`))
		if name != "" {
			s.Name = name
		}
	}
	return s
}
