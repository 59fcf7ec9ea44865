// Package parser turns RFC 5322 messages into models.IncomingEmail.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	gomessage "github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
	htmlcharset "golang.org/x/net/html/charset"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
)

// DefaultBodyLimit caps how much of each text part is kept.
const DefaultBodyLimit = 1 << 20

// TruncationMarker is appended to a text part cut at the body limit.
const TruncationMarker = "\n[message truncated]"

// ErrEmptyMessage is returned for a zero-length input.
var ErrEmptyMessage = errors.New("empty message")

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	return htmlcharset.NewReaderLabel(charset, input)
}

func init() {
	gomessage.CharsetReader = charsetReader
}

// Parser decodes raw messages. The zero value is usable.
type Parser struct {
	BodyLimit int64
}

// New creates a parser keeping at most bodyLimit bytes per text part.
func New(bodyLimit int64) *Parser {
	return &Parser{BodyLimit: bodyLimit}
}

// Parse decodes raw. Headers that cannot be decoded are kept verbatim; only
// an unreadable header block is an error.
func (p *Parser) Parse(raw []byte) (models.IncomingEmail, error) {
	var out models.IncomingEmail
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, ErrEmptyMessage
	}

	reader, err := gomail.CreateReader(bytes.NewReader(raw))
	if reader == nil {
		return out, fmt.Errorf("read message header: %w", err)
	}
	if err != nil && !gomessage.IsUnknownCharset(err) && !gomessage.IsUnknownEncoding(err) {
		return out, fmt.Errorf("read message: %w", err)
	}
	defer reader.Close()

	h := &reader.Header
	out.From = p.fromHeader(h)
	out.To = p.decode(h.Get("To"))
	out.Subject = p.subject(h)
	out.MessageID = strings.TrimSpace(h.Get("Message-Id"))
	if date, err := h.Date(); err == nil {
		out.Timestamp = date.UTC()
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if out.Text == "" && out.HTML == "" {
				return out, fmt.Errorf("read message part: %w", err)
			}
			break
		}
		switch ph := part.Header.(type) {
		case *gomail.InlineHeader:
			mediaType, _, _ := ph.ContentType()
			body, err := p.readBody(part.Body)
			if err != nil {
				return out, fmt.Errorf("read %s part: %w", mediaType, err)
			}
			switch {
			case strings.EqualFold(mediaType, "text/html"):
				if out.HTML == "" {
					out.HTML = body
				}
			case mediaType == "" || strings.EqualFold(mediaType, "text/plain"):
				if out.Text == "" {
					out.Text = body
				}
			}
		case *gomail.AttachmentHeader:
			out.Attachments = append(out.Attachments, p.attachment(part, ph))
		}
	}
	return out, nil
}

func (p *Parser) fromHeader(h *gomail.Header) string {
	if list, err := h.AddressList("From"); err == nil && len(list) > 0 {
		a := list[0]
		if a.Name == "" {
			return a.Address
		}
		return fmt.Sprintf("%s <%s>", a.Name, a.Address)
	}
	return p.decode(h.Get("From"))
}

func (p *Parser) subject(h *gomail.Header) string {
	if s, err := h.Subject(); err == nil {
		return strings.TrimSpace(s)
	}
	return p.decode(h.Get("Subject"))
}

func (p *Parser) attachment(part *gomail.Part, h *gomail.AttachmentHeader) models.EmailAttachment {
	name, err := h.Filename()
	if err != nil || strings.TrimSpace(name) == "" {
		name = "attachment.bin"
	}
	mediaType, _, err := h.ContentType()
	if err != nil || mediaType == "" {
		mediaType = "application/octet-stream"
	}
	size, _ := io.Copy(io.Discard, part.Body)
	return models.EmailAttachment{Filename: name, ContentType: strings.ToLower(mediaType), Size: size}
}

func (p *Parser) readBody(r io.Reader) (string, error) {
	limit := p.BodyLimit
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) <= limit {
		return string(data), nil
	}
	// Drain the remainder so multipart readers can advance.
	_, _ = io.Copy(io.Discard, r)
	return string(trimPartialRune(data[:limit])) + TruncationMarker, nil
}

// trimPartialRune drops an incomplete UTF-8 sequence left at the end of b.
func trimPartialRune(b []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		start := len(b) - i
		if !utf8.RuneStart(b[start]) {
			continue
		}
		if !utf8.FullRune(b[start:]) {
			return b[:start]
		}
		break
	}
	return b
}

func (p *Parser) decode(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if decoded, err := wordDecoder.DecodeHeader(value); err == nil {
		return decoded
	}
	return value
}
