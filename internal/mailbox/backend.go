package mailbox

import (
	"fmt"
	"time"

	"github.com/tracyhatemice/mailsweep/internal/config"
)

// Part is one leaf of a message's MIME tree.
type Part struct {
	MIMEType string // media type without parameters, e.g. "text/plain"
	Body     []byte // decoded content
}

// Message is a handle to one message in an open folder. It is only valid
// while the folder it came from stays open on the same connection.
type Message interface {
	// Parts walks the MIME tree and returns every leaf part.
	Parts() ([]Part, error)

	// ReceivedDate returns the time the server received the message.
	ReceivedDate() (time.Time, error)

	// From returns the addresses in the From header.
	From() ([]string, error)

	// MessageID returns the Message-ID header, or "" when absent.
	MessageID() (string, error)
}

// Folder is a folder opened for reading. Messages are addressed by their
// 1-based sequence number.
type Folder interface {
	Name() string

	// Len returns the number of messages in the folder.
	Len() int

	// Message returns a handle for the message at seq.
	Message(seq int) (Message, error)

	// Messages returns handles for the inclusive range [start, end],
	// clamped to the folder size, in a single round trip where the
	// protocol allows it.
	Messages(start, end int) ([]Message, error)
}

// Conn is an authenticated connection to a mailbox.
type Conn interface {
	// ListFolders returns folder names in server order.
	ListFolders() ([]string, error)

	// OpenFolder opens name for reading, replacing any folder opened
	// before on this connection.
	OpenFolder(name string) (Folder, error)

	Close() error
}

// Dialer opens connections for a mailbox configuration.
type Dialer interface {
	Dial(cfg config.Mailbox) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(cfg config.Mailbox) (Conn, error)

func (f DialerFunc) Dial(cfg config.Mailbox) (Conn, error) { return f(cfg) }

// NewDialer returns the Dialer for cfg.Protocol.
func NewDialer(protocol string) (Dialer, error) {
	switch protocol {
	case "imap":
		return DialerFunc(DialIMAP), nil
	case "pop3":
		return DialerFunc(DialPOP3), nil
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", protocol)
	}
}

// clampRange converts a 1-based inclusive range to one inside [1, n].
// ok is false when the range selects nothing.
func clampRange(start, end, n int) (int, int, bool) {
	if start < 1 {
		start = 1
	}
	if end > n {
		end = n
	}
	return start, end, start <= end
}
