package mailbox

import (
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-message/mail"
	pop3client "github.com/knadh/go-pop3"

	"github.com/tracyhatemice/mailsweep/internal/config"
)

// DialPOP3 connects and authenticates to a POP3/POP3S server. POP3 has no
// folders, so the connection exposes a single folder named after the
// configured inbox.
func DialPOP3(cfg config.Mailbox) (Conn, error) {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	client := pop3client.New(pop3client.Opt{
		Host:       cfg.Host,
		Port:       cfg.Port,
		TLSEnabled: cfg.UseTLS,
	})
	conn, err := client.NewConn()
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}

	if err := conn.Auth(cfg.Username, cfg.Password); err != nil {
		conn.Quit()
		return nil, &ConnectError{Addr: addr, Err: fmt.Errorf("pop3 auth %s: %w", cfg.Username, err)}
	}

	return &pop3Conn{conn: conn, inbox: cfg.GetInboxFolder()}, nil
}

type pop3Conn struct {
	conn  *pop3client.Conn
	inbox string
}

func (c *pop3Conn) ListFolders() ([]string, error) {
	return []string{c.inbox}, nil
}

func (c *pop3Conn) OpenFolder(name string) (Folder, error) {
	if name != c.inbox {
		return nil, &FolderOpenError{Folder: name, Err: fmt.Errorf("pop3 has only %q", c.inbox)}
	}
	msgs, err := c.conn.List(0)
	if err != nil {
		return nil, &ProtocolError{Op: "pop3 list", Err: err}
	}
	return &pop3Folder{conn: c.conn, name: name, ids: msgs}, nil
}

func (c *pop3Conn) Close() error {
	return c.conn.Quit()
}

type pop3Folder struct {
	conn *pop3client.Conn
	name string
	ids  []pop3client.MessageID
}

func (f *pop3Folder) Name() string { return f.name }

func (f *pop3Folder) Len() int { return len(f.ids) }

func (f *pop3Folder) Message(seq int) (Message, error) {
	if seq < 1 || seq > len(f.ids) {
		return nil, fmt.Errorf("pop3 message %d out of range 1..%d", seq, len(f.ids))
	}
	return &pop3Message{conn: f.conn, id: f.ids[seq-1].ID}, nil
}

// Messages has no batched form in POP3; handles are returned lazily.
func (f *pop3Folder) Messages(start, end int) ([]Message, error) {
	start, end, ok := clampRange(start, end, len(f.ids))
	if !ok {
		return nil, nil
	}
	msgs := make([]Message, 0, end-start+1)
	for seq := start; seq <= end; seq++ {
		msgs = append(msgs, &pop3Message{conn: f.conn, id: f.ids[seq-1].ID})
	}
	return msgs, nil
}

type pop3Message struct {
	conn   *pop3client.Conn
	id     int
	raw    []byte
	header *mail.Header
}

func (m *pop3Message) load() error {
	if m.raw != nil {
		return nil
	}
	buf, err := m.conn.RetrRaw(m.id)
	if err != nil {
		return fmt.Errorf("pop3 retrieve %d: %w", m.id, err)
	}
	m.raw = buf.Bytes()
	return nil
}

func (m *pop3Message) loadHeader() (mail.Header, error) {
	if m.header != nil {
		return *m.header, nil
	}
	if err := m.load(); err != nil {
		return mail.Header{}, err
	}
	h, err := parseHeader(m.raw)
	if err != nil {
		return mail.Header{}, err
	}
	m.header = &h
	return h, nil
}

func (m *pop3Message) Parts() ([]Part, error) {
	if err := m.load(); err != nil {
		return nil, err
	}
	return ParseParts(m.raw)
}

// ReceivedDate falls back to the Date header; POP3 does not expose the
// server's arrival time.
func (m *pop3Message) ReceivedDate() (time.Time, error) {
	h, err := m.loadHeader()
	if err != nil {
		return time.Time{}, err
	}
	return headerDate(h)
}

func (m *pop3Message) From() ([]string, error) {
	h, err := m.loadHeader()
	if err != nil {
		return nil, err
	}
	return headerFrom(h)
}

func (m *pop3Message) MessageID() (string, error) {
	h, err := m.loadHeader()
	if err != nil {
		return "", err
	}
	return headerMessageID(h), nil
}
