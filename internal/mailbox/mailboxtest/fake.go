// Package mailboxtest provides an in-memory mailbox backend for tests.
package mailboxtest

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/tracyhatemice/mailsweep/internal/config"
	"github.com/tracyhatemice/mailsweep/internal/mailbox"
)

// ErrRead is returned by a Message configured to fail.
var ErrRead = errors.New("mailboxtest: read failed")

// Message is a fake message. Failure counters live on the message, so
// they survive reconnects.
type Message struct {
	ID       string // also served as the Message-ID
	From     []string
	Received time.Time
	Body     []mailbox.Part

	// FailReads makes Parts fail this many times before succeeding.
	// A negative value fails forever.
	FailReads int
	Reads     int
}

// Text builds a single-part text/plain message.
func Text(id, from string, received time.Time, body string) *Message {
	return &Message{
		ID:       id,
		From:     []string{from},
		Received: received,
		Body:     []mailbox.Part{{MIMEType: "text/plain", Body: []byte(body)}},
	}
}

// Backend is a fake mailbox server implementing mailbox.Dialer.
type Backend struct {
	Folders  []string
	Messages map[string][]*Message

	// DialErr, when set, is returned by every Dial.
	DialErr error
	// FailDials fails this many dials with a ConnectError before succeeding.
	FailDials int
	// DialFailsAt lists 1-based dial ordinals that fail with a ConnectError.
	DialFailsAt []int
	// DialErrAt maps 1-based dial ordinals to the error that dial returns.
	DialErrAt map[int]error
	// OpenFails fails OpenFolder for a folder this many times; negative fails forever.
	OpenFails map[string]int
	ListErr   error

	Dials  int
	Closes int
	Opens  []string
}

// New returns a backend with the given folder order and no messages.
func New(folders ...string) *Backend {
	return &Backend{
		Folders:   folders,
		Messages:  make(map[string][]*Message),
		OpenFails: make(map[string]int),
	}
}

// Add appends messages to folder.
func (b *Backend) Add(folder string, msgs ...*Message) {
	b.Messages[folder] = append(b.Messages[folder], msgs...)
}

func (b *Backend) Dial(cfg config.Mailbox) (mailbox.Conn, error) {
	b.Dials++
	if b.DialErr != nil {
		return nil, b.DialErr
	}
	if err, ok := b.DialErrAt[b.Dials]; ok {
		return nil, err
	}
	if b.FailDials > 0 || slices.Contains(b.DialFailsAt, b.Dials) {
		if b.FailDials > 0 {
			b.FailDials--
		}
		return nil, &mailbox.ConnectError{Addr: cfg.Addr(), Err: errors.New("connection refused")}
	}
	return &conn{backend: b}, nil
}

type conn struct {
	backend *Backend
	closed  bool
}

func (c *conn) ListFolders() ([]string, error) {
	if c.closed {
		return nil, errors.New("mailboxtest: connection closed")
	}
	if c.backend.ListErr != nil {
		return nil, c.backend.ListErr
	}
	return append([]string(nil), c.backend.Folders...), nil
}

func (c *conn) OpenFolder(name string) (mailbox.Folder, error) {
	b := c.backend
	b.Opens = append(b.Opens, name)
	if c.closed {
		return nil, errors.New("mailboxtest: connection closed")
	}
	if n := b.OpenFails[name]; n != 0 {
		if n > 0 {
			b.OpenFails[name] = n - 1
		}
		return nil, &mailbox.FolderOpenError{Folder: name, Err: errors.New("permission denied")}
	}
	if !slices.Contains(b.Folders, name) {
		return nil, &mailbox.FolderOpenError{Folder: name, Err: errors.New("no such folder")}
	}
	return &folder{conn: c, name: name, msgs: b.Messages[name]}, nil
}

func (c *conn) Close() error {
	if c.closed {
		return errors.New("mailboxtest: already closed")
	}
	c.closed = true
	c.backend.Closes++
	return nil
}

type folder struct {
	conn *conn
	name string
	msgs []*Message
}

func (f *folder) Name() string { return f.name }

func (f *folder) Len() int { return len(f.msgs) }

func (f *folder) Message(seq int) (mailbox.Message, error) {
	if seq < 1 || seq > len(f.msgs) {
		return nil, fmt.Errorf("mailboxtest: message %d out of range", seq)
	}
	return &handle{conn: f.conn, msg: f.msgs[seq-1]}, nil
}

func (f *folder) Messages(start, end int) ([]mailbox.Message, error) {
	if start < 1 {
		start = 1
	}
	if end > len(f.msgs) {
		end = len(f.msgs)
	}
	var out []mailbox.Message
	for seq := start; seq <= end; seq++ {
		out = append(out, &handle{conn: f.conn, msg: f.msgs[seq-1]})
	}
	return out, nil
}

type handle struct {
	conn *conn
	msg  *Message
}

func (h *handle) Parts() ([]mailbox.Part, error) {
	if h.conn.closed {
		return nil, errors.New("mailboxtest: stale message handle")
	}
	h.msg.Reads++
	if h.msg.FailReads != 0 {
		if h.msg.FailReads > 0 {
			h.msg.FailReads--
		}
		return nil, fmt.Errorf("%s: %w", h.msg.ID, ErrRead)
	}
	return h.msg.Body, nil
}

func (h *handle) ReceivedDate() (time.Time, error) {
	if h.conn.closed {
		return time.Time{}, errors.New("mailboxtest: stale message handle")
	}
	return h.msg.Received, nil
}

func (h *handle) From() ([]string, error) {
	if h.conn.closed {
		return nil, errors.New("mailboxtest: stale message handle")
	}
	return h.msg.From, nil
}

func (h *handle) MessageID() (string, error) {
	if h.conn.closed {
		return "", errors.New("mailboxtest: stale message handle")
	}
	return h.msg.ID, nil
}
