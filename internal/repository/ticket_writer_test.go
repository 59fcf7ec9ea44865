package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
)

var fixedNow = time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC)

func newTestWriter(t *testing.T) (*TicketWriter, *MemoryTicketRepository) {
	t.Helper()
	tickets := NewMemoryTicketRepository()
	users := NewMemoryUserRepository(models.User{ID: 1, Username: "system", Role: models.RoleAdmin, IsActive: true})
	return NewTicketWriter(tickets, users, WithWriterClock(func() time.Time { return fixedNow })), tickets
}

func TestTeamForCategory(t *testing.T) {
	tests := map[models.TicketCategory]string{
		models.CategoryBug:            TeamIS,
		models.CategoryFeatureRequest: TeamIS,
		models.CategoryTechnicalIssue: TeamIS,
		models.CategorySupport:        TeamCS,
		models.CategoryGeneral:        TeamCS,
		"SOMETHING_ELSE":              TeamCS,
	}
	for cat, want := range tests {
		assert.Equal(t, want, TeamForCategory(cat), string(cat))
	}
}

func TestTicketWriter_CreateTicket(t *testing.T) {
	w, repo := newTestWriter(t)

	tk, c, err := w.CreateTicket(context.Background(), NewTicket{
		TicketNumber:  "TIPA-HD-250115-001",
		Subject:       "Login error on portal",
		Body:          "I get an error when logging in.",
		CustomerEmail: "alice@example.com",
		CustomerName:  "Alice",
		Category:      models.CategoryBug,
		Priority:      models.PriorityMedium,
		MessageID:     "<abc@mail>",
		ReceivedAt:    time.Date(2025, 1, 15, 8, 29, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusOpen, tk.Status)
	assert.Equal(t, "IS", tk.AssignedTeam)
	assert.Equal(t, models.Tags{"email-conversion", "auto-generated"}, tk.Tags)
	assert.Equal(t, "Login error on portal", tk.Title)
	assert.Equal(t, int64(1), tk.CreatedBy)
	assert.Equal(t, fixedNow, tk.CreatedAt)

	assert.Equal(t, tk.ID, c.TicketID)
	assert.Equal(t, models.AuthorSystem, c.AuthorType)
	assert.True(t, c.IsInternal)
	assert.Contains(t, c.Content, "From: Alice <alice@example.com>")
	assert.Contains(t, c.Content, "Message-ID: <abc@mail>")
	assert.Contains(t, c.Content, "Date: Wed, 15 Jan 2025 08:29:00 +0000")
	assert.Contains(t, c.Content, "I get an error when logging in.")

	assert.Len(t, repo.Tickets(), 1)
	assert.Len(t, repo.Comments(tk.ID), 1)
}

func TestTicketWriter_CreateTicket_ClipsToColumnWidths(t *testing.T) {
	w, repo := newTestWriter(t)
	subject := strings.Repeat("Lỗi đăng nhập ", 50)
	rawFrom := strings.Repeat("không có địa chỉ ", 20)

	tk, c, err := w.CreateTicket(context.Background(), NewTicket{
		TicketNumber:  "TIPA-HD-250115-001",
		Subject:       subject,
		Body:          "body",
		CustomerEmail: rawFrom,
		CustomerName:  rawFrom,
		Category:      models.CategoryGeneral,
		Priority:      models.PriorityMedium,
	})
	require.NoError(t, err)

	assert.Equal(t, MaxTitleLength, utf8.RuneCountInString(tk.Title))
	assert.True(t, strings.HasPrefix(subject, tk.Title))
	assert.Equal(t, MaxCustomerLength, utf8.RuneCountInString(tk.CustomerEmail))
	assert.Equal(t, MaxCustomerLength, utf8.RuneCountInString(tk.CustomerName))
	assert.True(t, utf8.ValidString(tk.Title))
	assert.Contains(t, c.Content, rawFrom)

	found, err := repo.FindLatest(context.Background(), TicketQuery{
		CustomerEmail: rawFrom,
		SubjectTerms:  []string{subject},
		Since:         fixedNow.Add(-time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, tk.ID, found.ID)
}

func TestTicketWriter_CreateTicket_NoSystemUser(t *testing.T) {
	tickets := NewMemoryTicketRepository()
	w := NewTicketWriter(tickets, NewMemoryUserRepository(models.User{ID: 2, Role: models.RoleUser, IsActive: true}))

	_, _, err := w.CreateTicket(context.Background(), NewTicket{TicketNumber: "X"})
	assert.ErrorIs(t, err, ErrNoSystemUser)
	assert.Empty(t, tickets.Tickets())
}

func TestTicketWriter_CreateTicket_WriteFailurePropagates(t *testing.T) {
	w, repo := newTestWriter(t)
	repo.FailWrites = errors.New("db down")

	_, _, err := w.CreateTicket(context.Background(), NewTicket{TicketNumber: "TIPA-HD-250115-001"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestTicketWriter_AppendReply(t *testing.T) {
	tests := []struct {
		status     models.TicketStatus
		wantStatus models.TicketStatus
	}{
		{models.StatusClosed, models.StatusOpen},
		{models.StatusResolved, models.StatusOpen},
		{models.StatusOpen, models.StatusOpen},
		{models.StatusInProgress, models.StatusInProgress},
		{models.StatusPending, models.StatusPending},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			w, repo := newTestWriter(t)
			created := fixedNow.Add(-48 * time.Hour)
			tk := repo.Seed(models.Ticket{
				TicketNumber: "TIPA-HD-250113-001", Title: "VPN", Status: tt.status,
				CustomerEmail: "alice@example.com", CreatedAt: created, UpdatedAt: created,
			})

			c, err := w.AppendReply(context.Background(), tk, Reply{
				Body: "Still failing", CustomerEmail: "alice@example.com", CustomerName: "Alice",
			})
			require.NoError(t, err)
			assert.Equal(t, models.AuthorCustomer, c.AuthorType)
			assert.False(t, c.IsInternal)
			assert.Contains(t, c.Content, "Still failing")

			stored, err := repo.GetByID(context.Background(), tk.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)
			assert.Equal(t, tt.wantStatus, tk.Status)
			if tt.status != tt.wantStatus {
				assert.Equal(t, fixedNow, stored.UpdatedAt)
			} else {
				assert.Equal(t, created, stored.UpdatedAt)
			}
		})
	}
}
