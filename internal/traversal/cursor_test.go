package traversal

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracyhatemice/mailsweep/internal/config"
	"github.com/tracyhatemice/mailsweep/internal/mailbox"
	"github.com/tracyhatemice/mailsweep/internal/mailbox/mailboxtest"
)

var day = time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func connected(t *testing.T, b *mailboxtest.Backend) *mailbox.Session {
	t.Helper()
	s := mailbox.NewSession(config.Mailbox{Host: "h", Port: 143}, b, discard())
	require.NoError(t, s.Connect())
	t.Cleanup(s.Disconnect)
	return s
}

func fill(b *mailboxtest.Backend, folder string, ids ...string) {
	for _, id := range ids {
		b.Add(folder, mailboxtest.Text(id, "a@example.com", day, id))
	}
}

type visit struct {
	folder string
	id     string
}

func drain(t *testing.T, c *Cursor) []visit {
	t.Helper()
	var out []visit
	for c.HasNext() {
		msg, err := c.Next()
		require.NoError(t, err)
		parts, err := msg.Parts()
		require.NoError(t, err)
		out = append(out, visit{c.CurrentFolder(), string(parts[0].Body)})
	}
	return out
}

func TestCursor_WalksFoldersInOrder(t *testing.T) {
	b := mailboxtest.New("INBOX", "Empty", "Sent")
	fill(b, "INBOX", "m1", "m2")
	fill(b, "Sent", "s1")

	c := New(connected(t, b), []string{"INBOX", "Empty", "Sent"}, discard())
	got := drain(t, c)

	assert.Equal(t, []visit{{"INBOX", "m1"}, {"INBOX", "m2"}, {"Sent", "s1"}}, got)
	assert.False(t, c.HasNext())
}

func TestCursor_NextAfterEndIsExhausted(t *testing.T) {
	b := mailboxtest.New("INBOX")
	fill(b, "INBOX", "m1")

	c := New(connected(t, b), []string{"INBOX"}, discard())
	drain(t, c)

	_, err := c.Next()
	assert.ErrorIs(t, err, mailbox.ErrExhausted)
}

func TestCursor_NoFolders(t *testing.T) {
	c := New(connected(t, mailboxtest.New("INBOX")), nil, discard())
	assert.False(t, c.HasNext())
	_, err := c.Next()
	assert.ErrorIs(t, err, mailbox.ErrExhausted)
}

func TestCursor_AllFoldersEmpty(t *testing.T) {
	b := mailboxtest.New("A", "B")
	c := New(connected(t, b), []string{"A", "B"}, discard())
	assert.False(t, c.HasNext())
	assert.Equal(t, []string{"A", "B"}, b.Opens)
}

func TestCursor_FolderOpenFailureSurfacesThroughNext(t *testing.T) {
	b := mailboxtest.New("INBOX", "Locked", "Sent")
	fill(b, "INBOX", "m1")
	fill(b, "Locked", "x1")
	fill(b, "Sent", "s1")
	b.OpenFails["Locked"] = -1

	c := New(connected(t, b), []string{"INBOX", "Locked", "Sent"}, discard())

	msg, err := c.Next()
	require.NoError(t, err)
	require.NotNil(t, msg)

	require.True(t, c.HasNext())
	_, err = c.Next()
	var ferr *mailbox.FolderOpenError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "Locked", ferr.Folder)
	assert.Equal(t, "Locked", c.CurrentFolder())

	// Calling Next again moves past the broken folder.
	require.True(t, c.HasNext())
	_, err = c.Next()
	require.NoError(t, err)
	assert.Equal(t, "Sent", c.CurrentFolder())
	assert.False(t, c.HasNext())
}

func TestCursor_JumpToRestartsFolder(t *testing.T) {
	b := mailboxtest.New("INBOX", "Sent")
	fill(b, "INBOX", "m1", "m2", "m3")
	fill(b, "Sent", "s1")

	s := connected(t, b)
	c := New(s, []string{"INBOX", "Sent"}, discard())

	_, err := c.Next()
	require.NoError(t, err)
	_, err = c.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, c.Position())

	require.NoError(t, s.Reconnect())
	require.NoError(t, c.JumpTo("INBOX"))
	assert.Equal(t, 0, c.Position())

	got := drain(t, c)
	assert.Equal(t, []visit{{"INBOX", "m1"}, {"INBOX", "m2"}, {"INBOX", "m3"}, {"Sent", "s1"}}, got)
}

func TestCursor_JumpToFailureMovesOn(t *testing.T) {
	b := mailboxtest.New("INBOX", "Sent")
	fill(b, "INBOX", "m1", "m2")
	fill(b, "Sent", "s1")

	s := connected(t, b)
	c := New(s, []string{"INBOX", "Sent"}, discard())
	_, err := c.Next()
	require.NoError(t, err)

	b.OpenFails["INBOX"] = 1
	require.Error(t, c.JumpTo("INBOX"))
	assert.Equal(t, "INBOX", c.CurrentFolder())

	got := drain(t, c)
	assert.Equal(t, []visit{{"Sent", "s1"}}, got)
}

func TestCursor_StaleHandleAfterReconnect(t *testing.T) {
	b := mailboxtest.New("INBOX")
	fill(b, "INBOX", "m1")

	s := connected(t, b)
	c := New(s, []string{"INBOX"}, discard())
	msg, err := c.Next()
	require.NoError(t, err)

	require.NoError(t, s.Reconnect())
	_, err = msg.Parts()
	assert.Error(t, err)
}
