package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/TIPA-VN/uxone-sub003/internal/auth"
	"github.com/TIPA-VN/uxone-sub003/internal/email/inbound/postmaster"
	"github.com/TIPA-VN/uxone-sub003/internal/models"
)

// Response messages returned by the email endpoints.
const (
	MessageTicketCreated = "Ticket created successfully from email"
	MessageReplyAdded    = "Reply added to existing ticket"
)

type ticketSummary struct {
	ID           int64                 `json:"id"`
	TicketNumber string                `json:"ticketNumber"`
	Title        string                `json:"title"`
	Status       models.TicketStatus   `json:"status"`
	Priority     models.TicketPriority `json:"priority"`
	Category     models.TicketCategory `json:"category"`
}

type commentSummary struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

type createdResponse struct {
	Success bool          `json:"success"`
	Ticket  ticketSummary `json:"ticket"`
	Message string        `json:"message"`
}

type replyResponse struct {
	Success bool           `json:"success"`
	Action  string         `json:"action"`
	Ticket  ticketSummary  `json:"ticket"`
	Comment commentSummary `json:"comment"`
	Message string         `json:"message"`
}

func summarize(t *models.Ticket) ticketSummary {
	return ticketSummary{
		ID:           t.ID,
		TicketNumber: t.TicketNumber,
		Title:        t.Title,
		Status:       t.Status,
		Priority:     t.Priority,
		Category:     t.Category,
	}
}

// emailWebhookInfo answers GET with a usage document so that mail
// gateways can verify the endpoint before sending.
func (r *Router) emailWebhookInfo(c *gin.Context) {
	authMode := "none"
	if r.secret != "" {
		authMode = "Authorization: Bearer <secret>"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"service":        r.service,
		"endpoint":       PathEmailWebhook,
		"method":         http.MethodPost,
		"contentType":    "application/json",
		"requiredFields": []string{"from", "subject", "text or html"},
		"optionalFields": []string{"to", "messageId", "timestamp", "attachments"},
		"rawEndpoint":    PathEmailWebhookRaw,
		"authentication": authMode,
	})
}

// handleEmailWebhook handles POST /api/webhooks/email-to-ticket.
func (r *Router) handleEmailWebhook(c *gin.Context) {
	if !r.authorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	body, ok := r.readBody(c)
	if !ok {
		return
	}

	problems, err := schemaProblems(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	if len(problems) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload", "details": problems})
		return
	}

	var email models.IncomingEmail
	if err := json.Unmarshal(body, &email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload", "details": []string{err.Error()}})
		return
	}
	r.process(c, email)
}

// handleRawEmail handles POST /api/webhooks/email-to-ticket/raw with an
// RFC 5322 message as the body.
func (r *Router) handleRawEmail(c *gin.Context) {
	if !r.authorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	body, ok := r.readBody(c)
	if !ok {
		return
	}

	email, err := r.parser.Parse(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email message", "details": err.Error()})
		return
	}
	r.process(c, email)
}

func (r *Router) process(c *gin.Context, email models.IncomingEmail) {
	if missing := postmaster.Validate(email); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: " + strings.Join(missing, ", ")})
		return
	}

	res, err := r.pipeline.Process(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, postmaster.ErrInvalidPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		r.logger.Error().Err(err).Str("from", email.From).Str("subject", email.Subject).Msg("email webhook failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process email: " + err.Error()})
		return
	}

	if res.Action == postmaster.ActionReplyAdded {
		resp := replyResponse{
			Success: true,
			Action:  res.Action,
			Ticket:  summarize(res.Ticket),
			Message: MessageReplyAdded,
		}
		if res.Comment != nil {
			resp.Comment = commentSummary{ID: res.Comment.ID, Content: res.Comment.Content}
		}
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusCreated, createdResponse{
		Success: true,
		Ticket:  summarize(res.Ticket),
		Message: MessageTicketCreated,
	})
}

func (r *Router) authorized(c *gin.Context) bool {
	if r.secret == "" {
		return true
	}
	got := auth.BearerToken(c.GetHeader("Authorization"))
	return subtle.ConstantTimeCompare([]byte(got), []byte(r.secret)) == 1
}

func (r *Router) readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, r.bodyLimit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return nil, false
	}
	return body, true
}
