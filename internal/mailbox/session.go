package mailbox

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tracyhatemice/mailsweep/internal/config"
)

// State is the connection state of a Session.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Session owns one connection to one mailbox account. It is not safe for
// concurrent use; every operation creates its own.
type Session struct {
	cfg    config.Mailbox
	dialer Dialer
	logger *slog.Logger

	state  State
	conn   Conn
	folder string
}

// NewSession creates a disconnected session.
func NewSession(cfg config.Mailbox, dialer Dialer, logger *slog.Logger) *Session {
	return &Session{
		cfg:    cfg,
		dialer: dialer,
		logger: logger,
	}
}

// Connect dials and authenticates. An ordinary failure returns a
// *ConnectError; a malformed server exchange returns a *ProtocolError.
// Either way the session stays Disconnected. Connecting an already
// connected session is a no-op.
func (s *Session) Connect() error {
	if s.state == Connected {
		return nil
	}

	conn, err := s.dialer.Dial(s.cfg)
	if err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) {
			s.logger.Error("protocol error on connect", "addr", s.cfg.Addr(), "error", err)
			return err
		}
		var cerr *ConnectError
		if !errors.As(err, &cerr) {
			err = &ConnectError{Addr: s.cfg.Addr(), Err: err}
		}
		s.logger.Warn("connect failed", "addr", s.cfg.Addr(), "error", err)
		return err
	}

	s.conn = conn
	s.state = Connected
	s.logger.Debug("connected", "addr", s.cfg.Addr(), "protocol", s.cfg.Protocol)
	return nil
}

// Disconnect closes the open folder and the connection. Calling it on a
// disconnected session does nothing.
func (s *Session) Disconnect() {
	if s.state == Disconnected {
		return
	}
	if err := s.conn.Close(); err != nil {
		s.logger.Debug("close connection", "addr", s.cfg.Addr(), "error", err)
	}
	s.conn = nil
	s.folder = ""
	s.state = Disconnected
	s.logger.Debug("disconnected", "addr", s.cfg.Addr())
}

// Reconnect drops the current connection and dials again.
func (s *Session) Reconnect() error {
	s.Disconnect()
	return s.Connect()
}

// ListFolders returns the mailbox's folder names in server order.
func (s *Session) ListFolders() ([]string, error) {
	if s.state != Connected {
		return nil, ErrNotConnected
	}
	return s.conn.ListFolders()
}

// OpenFolder opens name for reading and leaves no folder open on
// failure. A missing or unreadable folder returns a *FolderOpenError; a
// connection-level failure is returned as is, so callers can tell the
// two apart.
func (s *Session) OpenFolder(name string) (Folder, error) {
	if s.state != Connected {
		return nil, fmt.Errorf("open folder %q: %w", name, ErrNotConnected)
	}
	f, err := s.conn.OpenFolder(name)
	if err != nil {
		s.folder = ""
		return nil, err
	}
	s.folder = name
	return f, nil
}

// State reports whether the session is connected.
func (s *Session) State() State { return s.state }

// CurrentFolder returns the open folder, or "" when none is open.
func (s *Session) CurrentFolder() string { return s.folder }
