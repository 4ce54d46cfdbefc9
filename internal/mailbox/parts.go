package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"
)

func init() {
	// Legacy charsets still common in old mailboxes.
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

// ParseParts walks a raw RFC 5322 message and returns its leaf parts in
// tree order. A message with an unknown charset is still walked; its
// bodies are returned undecoded.
func ParseParts(raw []byte) ([]Part, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty message body")
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("create mail reader: %w", err)
	}
	defer mr.Close()

	var parts []Part
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("read part %d: %w", len(parts), err)
		}

		var contentType string
		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ = h.ContentType()
		case *mail.AttachmentHeader:
			contentType, _, _ = h.ContentType()
		}

		body, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("read part %d body: %w", len(parts), err)
		}
		parts = append(parts, Part{MIMEType: contentType, Body: body})
	}
	return parts, nil
}

// parseHeader reads only the header block of a raw message.
func parseHeader(raw []byte) (mail.Header, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return mail.Header{}, fmt.Errorf("create mail reader: %w", err)
	}
	defer mr.Close()
	return mr.Header, nil
}

// headerFrom returns the addresses of the From header.
func headerFrom(h mail.Header) ([]string, error) {
	addrs, err := h.AddressList("From")
	if err != nil {
		return nil, fmt.Errorf("parse From header: %w", err)
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Address)
	}
	return out, nil
}

// headerMessageID returns the Message-ID without angle brackets. A
// malformed value counts as absent.
func headerMessageID(h mail.Header) string {
	id, err := h.MessageID()
	if err != nil {
		return ""
	}
	return id
}

// headerDate returns the Date header.
func headerDate(h mail.Header) (time.Time, error) {
	date, err := h.Date()
	if err != nil {
		return time.Time{}, fmt.Errorf("parse Date header: %w", err)
	}
	return date, nil
}
