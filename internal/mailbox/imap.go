package mailbox

import (
	"cmp"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/tracyhatemice/mailsweep/internal/config"
)

var imapFetchOptions = &imap.FetchOptions{
	Envelope:     true,
	InternalDate: true,
	BodySection: []*imap.FetchItemBodySection{
		{Peek: true},
	},
}

var imapBodySection = &imap.FetchItemBodySection{Peek: true}

// DialIMAP connects and logs in to an IMAP/IMAPS server.
func DialIMAP(cfg config.Mailbox) (Conn, error) {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	var client *imapclient.Client
	var err error

	if cfg.UseTLS {
		client, err = imapclient.DialTLS(addr, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: cfg.Host},
		})
	} else {
		client, err = imapclient.DialInsecure(addr, nil)
	}
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}

	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		client.Close()
		if isIMAPConnectFailure(err) {
			return nil, &ConnectError{Addr: addr, Err: fmt.Errorf("imap login %s: %w", cfg.Username, err)}
		}
		return nil, &ProtocolError{Op: "imap login", Err: err}
	}

	return &imapConn{client: client}, nil
}

// isIMAPConnectFailure reports whether err is a server rejection or a
// transport failure, as opposed to a reply the client could not parse.
func isIMAPConnectFailure(err error) bool {
	var imapErr *imap.Error
	return errors.As(err, &imapErr) || isTransportFailure(err)
}

// isTransportFailure reports whether err means the connection itself is
// gone.
func isTransportFailure(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

type imapConn struct {
	client *imapclient.Client
}

func (c *imapConn) ListFolders() ([]string, error) {
	list, err := c.client.List("", "*", nil).Collect()
	if err != nil {
		if isIMAPConnectFailure(err) {
			return nil, fmt.Errorf("imap list: %w", err)
		}
		return nil, &ProtocolError{Op: "imap list", Err: err}
	}

	names := make([]string, 0, len(list))
	for _, mbox := range list {
		if slices.Contains(mbox.Attrs, imap.MailboxAttrNoSelect) {
			continue
		}
		names = append(names, mbox.Mailbox)
	}
	return names, nil
}

func (c *imapConn) OpenFolder(name string) (Folder, error) {
	data, err := c.client.Select(name, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		if isTransportFailure(err) {
			return nil, fmt.Errorf("imap select %q: %w", name, err)
		}
		return nil, &FolderOpenError{Folder: name, Err: fmt.Errorf("imap select: %w", err)}
	}
	return &imapFolder{
		client: c.client,
		name:   name,
		count:  int(data.NumMessages),
	}, nil
}

func (c *imapConn) Close() error {
	if err := c.client.Logout().Wait(); err != nil {
		c.client.Close()
		return fmt.Errorf("imap logout: %w", err)
	}
	return c.client.Close()
}

type imapFolder struct {
	client *imapclient.Client
	name   string
	count  int
}

func (f *imapFolder) Name() string { return f.name }

func (f *imapFolder) Len() int { return f.count }

// Message returns a lazy handle; the FETCH happens on first access so a
// broken message surfaces as an extraction failure.
func (f *imapFolder) Message(seq int) (Message, error) {
	if seq < 1 || seq > f.count {
		return nil, fmt.Errorf("imap message %d out of range 1..%d", seq, f.count)
	}
	return &imapMessage{client: f.client, seq: uint32(seq)}, nil
}

func (f *imapFolder) Messages(start, end int) ([]Message, error) {
	start, end, ok := clampRange(start, end, f.count)
	if !ok {
		return nil, nil
	}

	var seqSet imap.SeqSet
	seqSet.AddRange(uint32(start), uint32(end))

	bufs, err := f.client.Fetch(seqSet, imapFetchOptions).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch %d:%d: %w", start, end, err)
	}
	slices.SortFunc(bufs, func(a, b *imapclient.FetchMessageBuffer) int {
		return cmp.Compare(a.SeqNum, b.SeqNum)
	})

	msgs := make([]Message, 0, len(bufs))
	for _, buf := range bufs {
		msgs = append(msgs, &imapMessage{client: f.client, seq: buf.SeqNum, buf: buf})
	}
	return msgs, nil
}

type imapMessage struct {
	client *imapclient.Client
	seq    uint32
	buf    *imapclient.FetchMessageBuffer
}

func (m *imapMessage) load() error {
	if m.buf != nil {
		return nil
	}
	bufs, err := m.client.Fetch(imap.SeqSetNum(m.seq), imapFetchOptions).Collect()
	if err != nil {
		return fmt.Errorf("imap fetch %d: %w", m.seq, err)
	}
	if len(bufs) == 0 {
		return fmt.Errorf("imap message %d not found", m.seq)
	}
	m.buf = bufs[0]
	return nil
}

func (m *imapMessage) Parts() ([]Part, error) {
	if err := m.load(); err != nil {
		return nil, err
	}
	return ParseParts(m.buf.FindBodySection(imapBodySection))
}

func (m *imapMessage) ReceivedDate() (time.Time, error) {
	if err := m.load(); err != nil {
		return time.Time{}, err
	}
	if m.buf.InternalDate.IsZero() {
		return time.Time{}, fmt.Errorf("imap message %d has no internal date", m.seq)
	}
	return m.buf.InternalDate, nil
}

func (m *imapMessage) From() ([]string, error) {
	if err := m.load(); err != nil {
		return nil, err
	}
	if m.buf.Envelope == nil {
		return nil, nil
	}
	out := make([]string, 0, len(m.buf.Envelope.From))
	for _, a := range m.buf.Envelope.From {
		out = append(out, a.Addr())
	}
	return out, nil
}

func (m *imapMessage) MessageID() (string, error) {
	if err := m.load(); err != nil {
		return "", err
	}
	if m.buf.Envelope == nil {
		return "", nil
	}
	return m.buf.Envelope.MessageID, nil
}
