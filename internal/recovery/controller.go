// Package recovery decides what a sweep does after a message fails to
// read: reconnect and restart the folder, or skip and keep going.
//
// Each failure moves through
//
//	Attempting -> Failed(n) -> Reconnecting -> Resumed
//	                        \-> Skipped
//	                        \-> Aborted
//
// where n counts failures in the current folder. A *mailbox.ProtocolError,
// either as the failure itself or from the reconnect, aborts the sweep. Up to MaxRestarts
// failures per folder trigger a reconnect; later ones are skipped. A
// resumed folder starts over from its first message, so earlier messages
// of that folder can be emitted twice.
package recovery

import (
	"errors"
	"log/slog"

	"github.com/tracyhatemice/mailsweep/internal/mailbox"
	"github.com/tracyhatemice/mailsweep/internal/metrics"
)

// MaxRestarts is the number of reconnects allowed per folder.
const MaxRestarts = 3

// Phase is a step of the recovery state machine.
type Phase int

const (
	Attempting Phase = iota
	Failed
	Reconnecting
	Resumed
	Skipped
	Aborted
)

func (p Phase) String() string {
	switch p {
	case Attempting:
		return "attempting"
	case Failed:
		return "failed"
	case Reconnecting:
		return "reconnecting"
	case Resumed:
		return "resumed"
	case Skipped:
		return "skipped"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// RetryState is the restart budget of the folder being processed.
type RetryState struct {
	folder   string
	restarts int
}

// Enter records that folder is being processed. The counter resets when
// the folder differs from the previous call; Enter reports whether it did.
func (r *RetryState) Enter(folder string) bool {
	if folder == r.folder {
		return false
	}
	r.folder = folder
	r.restarts = 0
	return true
}

// Folder returns the folder the budget belongs to.
func (r *RetryState) Folder() string { return r.folder }

// Restarts returns the number of failures counted in the current folder.
func (r *RetryState) Restarts() int { return r.restarts }

// Resumer re-establishes the connection and reopens a folder.
type Resumer interface {
	Reconnect() error
	JumpTo(folder string) error
}

// Outcome is the terminal state of one failure.
type Outcome struct {
	Phase   Phase // Resumed, Skipped or Aborted
	Attempt int   // value of the folder's failure counter
	Err     error // reconnect or jump error, or the protocol error that aborted
}

// Controller runs the recovery state machine against a Resumer.
type Controller struct {
	target  Resumer
	max     int
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Controller with the MaxRestarts budget.
func New(target Resumer, logger *slog.Logger, m *metrics.Metrics) *Controller {
	return &Controller{
		target:  target,
		max:     MaxRestarts,
		logger:  logger,
		metrics: m,
	}
}

// Fail handles one failed read in state's folder. The failed message is
// never retried directly; at most one reconnect is made per call. The
// caller must stop when the outcome is Aborted.
func (c *Controller) Fail(state *RetryState, cause error) Outcome {
	state.restarts++
	n := state.restarts
	folder := state.folder
	c.metrics.ExtractionFailures.Inc()

	if isProtocolError(cause) {
		c.logger.Error("protocol error, aborting", "folder", folder, "attempt", n, "phase", Aborted, "error", cause)
		return Outcome{Phase: Aborted, Attempt: n, Err: cause}
	}

	c.logger.Error("read failed", "folder", folder, "attempt", n, "phase", Failed, "error", cause)

	if n > c.max {
		c.metrics.MessagesSkipped.Inc()
		c.logger.Info("restart budget spent, skipping", "folder", folder, "phase", Skipped)
		return Outcome{Phase: Skipped, Attempt: n}
	}

	c.logger.Info("restarting at folder", "folder", folder, "attempt", n, "phase", Reconnecting)
	if err := c.resume(folder); err != nil {
		c.metrics.Reconnects.WithLabelValues(metrics.ReconnectFailed).Inc()
		if isProtocolError(err) {
			c.logger.Error("protocol error on restart, aborting", "folder", folder, "phase", Aborted, "error", err)
			return Outcome{Phase: Aborted, Attempt: n, Err: err}
		}
		c.logger.Warn("restart failed, skipping", "folder", folder, "phase", Skipped, "error", err)
		return Outcome{Phase: Skipped, Attempt: n, Err: err}
	}

	c.metrics.Reconnects.WithLabelValues(metrics.ReconnectOK).Inc()
	c.logger.Info("resumed", "folder", folder, "phase", Resumed)
	return Outcome{Phase: Resumed, Attempt: n}
}

func (c *Controller) resume(folder string) error {
	if err := c.target.Reconnect(); err != nil {
		return err
	}
	return c.target.JumpTo(folder)
}

func isProtocolError(err error) bool {
	var perr *mailbox.ProtocolError
	return errors.As(err, &perr)
}
