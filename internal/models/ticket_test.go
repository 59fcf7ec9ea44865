package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagsValueAndScan(t *testing.T) {
	v, err := Tags{"email-conversion", "auto-generated"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["email-conversion","auto-generated"]`, v)

	nilValue, err := Tags(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", nilValue)

	var tags Tags
	require.NoError(t, tags.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, Tags{"a", "b"}, tags)

	require.NoError(t, tags.Scan(nil))
	assert.Nil(t, tags)

	assert.Error(t, tags.Scan(42))
	assert.Error(t, tags.Scan("not-json"))
}

func TestTicketReopensOnReply(t *testing.T) {
	cases := map[TicketStatus]bool{
		StatusOpen:       false,
		StatusInProgress: false,
		StatusPending:    false,
		StatusResolved:   true,
		StatusClosed:     true,
	}
	for status, want := range cases {
		ticket := &Ticket{Status: status}
		assert.Equal(t, want, ticket.ReopensOnReply(), string(status))
	}
	var missing *Ticket
	assert.False(t, missing.ReopensOnReply())
}

func TestParseCategoryAndPriority(t *testing.T) {
	c, ok := ParseCategory("TECHNICAL_ISSUE")
	assert.True(t, ok)
	assert.Equal(t, CategoryTechnicalIssue, c)
	_, ok = ParseCategory("technical_issue")
	assert.False(t, ok)

	p, ok := ParsePriority("URGENT")
	assert.True(t, ok)
	assert.Equal(t, PriorityUrgent, p)
	_, ok = ParsePriority("CRITICAL")
	assert.False(t, ok)
}

func TestIncomingEmailAttachmentNames(t *testing.T) {
	assert.Nil(t, IncomingEmail{}.AttachmentNames())
	e := IncomingEmail{Attachments: []EmailAttachment{{Filename: "a.png"}, {Filename: "b.pdf"}}}
	assert.Equal(t, []string{"a.png", "b.pdf"}, e.AttachmentNames())
}
