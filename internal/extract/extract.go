// Package extract turns mailbox messages into flat records.
package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/tracyhatemice/mailsweep/internal/mailbox"
)

// DateLayout is the format of Record.ReceivedDate.
const DateLayout = time.DateOnly

// Record is one harvested message. MessageID and Position identify the
// message within its folder; they are not part of the extracted content.
type Record struct {
	From         string `json:"from"`
	Folder       string `json:"folder"`
	ReceivedDate string `json:"received_date"`
	Content      string `json:"content"`
	MessageID    string `json:"message_id,omitempty"`
	Position     int    `json:"position,omitempty"` // 1-based sequence number, set by the caller
}

// Extract reads msg and builds its record. Every text part is appended to
// Content in tree order; only the first From address is kept. Any read
// failure is returned as a *mailbox.ExtractionError.
func Extract(msg mailbox.Message, folder string) (Record, error) {
	parts, err := msg.Parts()
	if err != nil {
		return Record{}, &mailbox.ExtractionError{Folder: folder, Err: fmt.Errorf("read parts: %w", err)}
	}

	received, err := msg.ReceivedDate()
	if err != nil {
		return Record{}, &mailbox.ExtractionError{Folder: folder, Err: fmt.Errorf("read received date: %w", err)}
	}

	from, err := msg.From()
	if err != nil {
		return Record{}, &mailbox.ExtractionError{Folder: folder, Err: fmt.Errorf("read from: %w", err)}
	}

	id, err := msg.MessageID()
	if err != nil {
		return Record{}, &mailbox.ExtractionError{Folder: folder, Err: fmt.Errorf("read message id: %w", err)}
	}

	rec := Record{
		Folder:       folder,
		ReceivedDate: received.Format(DateLayout),
		Content:      Content(parts),
		MessageID:    id,
	}
	if len(from) > 0 {
		rec.From = from[0]
	}
	return rec, nil
}

// Content concatenates the bodies of all text/* parts.
func Content(parts []mailbox.Part) string {
	var sb strings.Builder
	for _, p := range parts {
		if !strings.HasPrefix(strings.ToLower(p.MIMEType), "text/") {
			continue
		}
		sb.Write(p.Body)
	}
	return sb.String()
}
