// Package traversal walks messages across a fixed list of folders.
package traversal

import (
	"log/slog"

	"github.com/tracyhatemice/mailsweep/internal/mailbox"
)

// Opener opens folders on the current connection. *mailbox.Session
// implements it.
type Opener interface {
	OpenFolder(name string) (mailbox.Folder, error)
}

// Cursor iterates messages folder by folder. At most one folder is open
// at a time and it is always the one CurrentFolder names.
//
// A folder that fails to open does not end the walk: HasNext reports
// true and the following Next returns the open error, so the caller can
// reconnect and JumpTo it, or simply call Next again to move on.
type Cursor struct {
	opener Opener
	logger *slog.Logger

	remaining []string
	current   string
	folder    mailbox.Folder
	pos       int // sequence number of the last message returned
	pending   error
}

// New returns a cursor over folders. The list is used as given; it is
// not re-read from the server during the walk.
func New(opener Opener, folders []string, logger *slog.Logger) *Cursor {
	return &Cursor{
		opener:    opener,
		logger:    logger,
		remaining: append([]string(nil), folders...),
	}
}

// HasNext reports whether Next has something to return. It opens later
// folders as needed, skipping empty ones.
func (c *Cursor) HasNext() bool {
	if c.pending != nil {
		return true
	}
	for {
		if c.folder != nil && c.pos < c.folder.Len() {
			return true
		}
		if len(c.remaining) == 0 {
			return false
		}

		name := c.remaining[0]
		c.remaining = c.remaining[1:]
		if err := c.open(name); err != nil {
			c.pending = err
			return true
		}
	}
}

// Next returns the next message. It returns mailbox.ErrExhausted once
// HasNext is false.
func (c *Cursor) Next() (mailbox.Message, error) {
	if !c.HasNext() {
		return nil, mailbox.ErrExhausted
	}
	if err := c.pending; err != nil {
		c.pending = nil
		return nil, err
	}

	c.pos++
	msg, err := c.folder.Message(c.pos)
	if err != nil {
		return nil, &mailbox.ExtractionError{Folder: c.current, Err: err}
	}
	return msg, nil
}

// CurrentFolder returns the folder of the last message returned by Next.
func (c *Cursor) CurrentFolder() string { return c.current }

// Position returns the sequence number of the last message returned in
// the current folder.
func (c *Cursor) Position() int { return c.pos }

// JumpTo reopens name and restarts it from its first message. Messages
// already returned from that folder will be returned again.
func (c *Cursor) JumpTo(name string) error {
	c.pending = nil
	return c.open(name)
}

func (c *Cursor) open(name string) error {
	c.current = name
	c.folder = nil
	c.pos = 0

	f, err := c.opener.OpenFolder(name)
	if err != nil {
		c.logger.Warn("open folder failed", "folder", name, "error", err)
		return err
	}
	c.folder = f
	c.logger.Debug("opened folder", "folder", name, "messages", f.Len())
	return nil
}
