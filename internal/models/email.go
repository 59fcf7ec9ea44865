package models

import "time"

// EmailAttachment describes an attachment carried by an inbound email.
// Content is not kept; attachments are only reported.
type EmailAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// IncomingEmail is the transient form of one inbound message.
type IncomingEmail struct {
	From        string            `json:"from"`
	To          string            `json:"to,omitempty"`
	Subject     string            `json:"subject"`
	Text        string            `json:"text,omitempty"`
	HTML        string            `json:"html,omitempty"`
	MessageID   string            `json:"messageId,omitempty"`
	Timestamp   time.Time         `json:"timestamp,omitempty"`
	Attachments []EmailAttachment `json:"attachments,omitempty"`
}

// AttachmentNames returns the attachment filenames in message order.
func (e IncomingEmail) AttachmentNames() []string {
	if len(e.Attachments) == 0 {
		return nil
	}
	names := make([]string, 0, len(e.Attachments))
	for _, a := range e.Attachments {
		names = append(names, a.Filename)
	}
	return names
}
