package recovery

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tracyhatemice/mailsweep/internal/mailbox"
	"github.com/tracyhatemice/mailsweep/internal/metrics"
)

type fakeResumer struct {
	reconnectErr error
	jumpErr      error
	reconnects   int
	jumps        []string
}

func (f *fakeResumer) Reconnect() error {
	f.reconnects++
	return f.reconnectErr
}

func (f *fakeResumer) JumpTo(folder string) error {
	f.jumps = append(f.jumps, folder)
	return f.jumpErr
}

func newController(r Resumer) (*Controller, *metrics.Metrics) {
	m := metrics.New()
	return New(r, slog.New(slog.NewTextHandler(io.Discard, nil)), m), m
}

var errRead = errors.New("read failed")

func TestRetryState_Enter(t *testing.T) {
	var rs RetryState
	assert.True(t, rs.Enter("INBOX"))
	assert.False(t, rs.Enter("INBOX"))

	rs.restarts = 2
	assert.False(t, rs.Enter("INBOX"))
	assert.Equal(t, 2, rs.Restarts())

	assert.True(t, rs.Enter("Sent"))
	assert.Equal(t, 0, rs.Restarts())
	assert.Equal(t, "Sent", rs.Folder())
}

func TestRetryState_ResetsExactlyOnFolderChange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c, _ := newController(&fakeResumer{})
		var rs RetryState

		steps := rapid.IntRange(1, 20).Draw(t, "steps")
		prev, prevRestarts := "", 0
		for i := 0; i < steps; i++ {
			folder := rapid.SampledFrom([]string{"INBOX", "Sent", "Trash"}).Draw(t, fmt.Sprintf("folder%d", i))
			changed := rs.Enter(folder)
			if changed != (folder != prev) {
				t.Fatalf("step %d: Enter(%q) after %q reported changed=%v", i, folder, prev, changed)
			}
			want := prevRestarts
			if changed {
				want = 0
			}
			if rs.Restarts() != want {
				t.Fatalf("step %d: restarts=%d after Enter(%q), want %d", i, rs.Restarts(), folder, want)
			}

			failures := rapid.IntRange(0, MaxRestarts+2).Draw(t, fmt.Sprintf("failures%d", i))
			for j := 0; j < failures; j++ {
				out := c.Fail(&rs, errRead)
				wantPhase := Resumed
				if out.Attempt > MaxRestarts {
					wantPhase = Skipped
				}
				if out.Phase != wantPhase {
					t.Fatalf("attempt %d: phase %v, want %v", out.Attempt, out.Phase, wantPhase)
				}
			}
			if rs.Restarts() != want+failures {
				t.Fatalf("step %d: restarts=%d, want %d", i, rs.Restarts(), want+failures)
			}
			prev, prevRestarts = folder, rs.Restarts()
		}
	})
}

func TestController_ReconnectsUpToBudgetThenSkips(t *testing.T) {
	r := &fakeResumer{}
	c, m := newController(r)

	var rs RetryState
	rs.Enter("INBOX")

	for i := 1; i <= MaxRestarts; i++ {
		out := c.Fail(&rs, errRead)
		assert.Equal(t, Resumed, out.Phase)
		assert.Equal(t, i, out.Attempt)
		assert.NoError(t, out.Err)
	}

	out := c.Fail(&rs, errRead)
	assert.Equal(t, Skipped, out.Phase)
	assert.Equal(t, MaxRestarts+1, out.Attempt)

	assert.Equal(t, MaxRestarts, r.reconnects)
	assert.Equal(t, []string{"INBOX", "INBOX", "INBOX"}, r.jumps)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ExtractionFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesSkipped))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Reconnects.WithLabelValues(metrics.ReconnectOK)))
}

func TestController_FolderChangeRestoresBudget(t *testing.T) {
	r := &fakeResumer{}
	c, _ := newController(r)

	var rs RetryState
	rs.Enter("INBOX")
	for i := 0; i < MaxRestarts+1; i++ {
		c.Fail(&rs, errRead)
	}

	rs.Enter("Sent")
	out := c.Fail(&rs, errRead)
	assert.Equal(t, Resumed, out.Phase)
	assert.Equal(t, 1, out.Attempt)
	assert.Equal(t, "Sent", r.jumps[len(r.jumps)-1])
}

func TestController_ReconnectFailureIsNotRetried(t *testing.T) {
	r := &fakeResumer{reconnectErr: errors.New("refused")}
	c, m := newController(r)

	var rs RetryState
	rs.Enter("INBOX")
	out := c.Fail(&rs, errRead)

	assert.Equal(t, Skipped, out.Phase)
	require.Error(t, out.Err)
	assert.Equal(t, 1, r.reconnects)
	assert.Empty(t, r.jumps)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconnects.WithLabelValues(metrics.ReconnectFailed)))
}

func TestController_JumpFailure(t *testing.T) {
	r := &fakeResumer{jumpErr: errors.New("no such folder")}
	c, _ := newController(r)

	var rs RetryState
	rs.Enter("Archive")
	out := c.Fail(&rs, errRead)

	assert.Equal(t, Skipped, out.Phase)
	assert.EqualError(t, out.Err, "no such folder")
	assert.Equal(t, []string{"Archive"}, r.jumps)
}

func TestController_ProtocolErrorOnReconnectAborts(t *testing.T) {
	perr := &mailbox.ProtocolError{Op: "imap login", Err: errors.New("garbled greeting")}
	r := &fakeResumer{reconnectErr: perr}
	c, m := newController(r)

	var rs RetryState
	rs.Enter("INBOX")
	out := c.Fail(&rs, errRead)

	assert.Equal(t, Aborted, out.Phase)
	assert.ErrorIs(t, out.Err, perr)
	assert.Empty(t, r.jumps)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.MessagesSkipped))
}

func TestController_ProtocolErrorCauseAbortsWithoutReconnect(t *testing.T) {
	r := &fakeResumer{}
	c, _ := newController(r)

	var rs RetryState
	rs.Enter("INBOX")
	cause := &mailbox.ExtractionError{
		Folder: "INBOX",
		Err:    &mailbox.ProtocolError{Op: "imap fetch", Err: errors.New("bad literal")},
	}
	out := c.Fail(&rs, cause)

	assert.Equal(t, Aborted, out.Phase)
	assert.Equal(t, 1, out.Attempt)
	assert.Zero(t, r.reconnects)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "attempting", Attempting.String())
	assert.Equal(t, "reconnecting", Reconnecting.String())
	assert.Equal(t, "aborted", Aborted.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
