package mail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gomessage "github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
	htmlcharset "golang.org/x/net/html/charset"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
)

const bodyLimit = 128 * 1024

func init() {
	gomessage.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return htmlcharset.NewReaderLabel(charset, input)
	}
}

// ParseRaw turns an RFC 5322 message into an InboundMessage. Plain-text
// parts win over HTML; HTML-only messages are reduced to text.
func ParseRaw(raw []byte) (domain.InboundMessage, error) {
	var msg domain.InboundMessage
	if len(raw) == 0 {
		return msg, errors.New("empty message")
	}
	reader, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return msg, fmt.Errorf("parse message: %w", err)
	}
	defer reader.Close()

	header := &reader.Header
	if list, err := header.AddressList("From"); err == nil && len(list) > 0 {
		msg.From = strings.TrimSpace(list[0].Address)
		msg.FromName = strings.TrimSpace(list[0].Name)
	}
	for _, field := range []string{"To", "Cc"} {
		if list, err := header.AddressList(field); err == nil {
			for _, addr := range list {
				msg.To = append(msg.To, strings.TrimSpace(addr.Address))
			}
		}
	}
	if subject, err := header.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = header.Get("Subject")
	}
	if date, err := header.Date(); err == nil {
		msg.ReceivedAt = date.UTC()
	}
	msg.ThreadID = threadID(header)

	plain, htmlBody := readBodies(reader)
	switch {
	case strings.TrimSpace(plain) != "":
		msg.Body = strings.TrimSpace(plain)
	case htmlBody != "":
		msg.Body = HTMLToText(htmlBody)
	}
	if msg.From == "" {
		return msg, errors.New("message has no sender")
	}
	return msg, nil
}

// threadID prefers the thread root from References, then In-Reply-To, then
// the message's own id.
func threadID(header *gomail.Header) string {
	if refs, err := header.MsgIDList("References"); err == nil && len(refs) > 0 {
		return refs[0]
	}
	if ids, err := header.MsgIDList("In-Reply-To"); err == nil && len(ids) > 0 {
		return ids[0]
	}
	if id, err := header.MessageID(); err == nil {
		return id
	}
	return ""
}

func readBodies(reader *gomail.Reader) (string, string) {
	var plain, htmlBody string
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			break
		}
		inline, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, err := inline.ContentType()
		if err != nil || mediaType == "" {
			mediaType = "text/plain"
		}
		body, err := io.ReadAll(io.LimitReader(part.Body, bodyLimit))
		if err != nil {
			continue
		}
		switch strings.ToLower(mediaType) {
		case "text/plain":
			if plain == "" {
				plain = string(body)
			}
		case "text/html":
			if htmlBody == "" {
				htmlBody = string(body)
			}
		}
	}
	return plain, htmlBody
}

// ensureReceived fills a zero ReceivedAt.
func ensureReceived(msg *domain.InboundMessage, fallback time.Time) {
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = fallback.UTC()
	}
}
