package harvest

import (
	"errors"
	"fmt"

	"github.com/tracyhatemice/mailsweep/internal/extract"
	"github.com/tracyhatemice/mailsweep/internal/filter"
	"github.com/tracyhatemice/mailsweep/internal/mailbox"
	"github.com/tracyhatemice/mailsweep/internal/recovery"
	"github.com/tracyhatemice/mailsweep/internal/traversal"
)

// Sweep extracts every message of the eligible folders. Read failures
// do not abort it: the returned records may miss or repeat messages of a
// folder that failed. An error is returned when the initial connect or
// the folder listing fails, or when a *mailbox.ProtocolError shows up at
// any point, including while reconnecting. Records gathered before such
// an error are discarded.
func (h *Harvester) Sweep(includes, excludes []string) ([]extract.Record, error) {
	var records []extract.Record
	err := h.withSession(func(s *mailbox.Session) error {
		all, err := s.ListFolders()
		if err != nil {
			return fmt.Errorf("list folders: %w", err)
		}
		eligible := filter.Eligible(all, includes, excludes)
		h.logger.Info("starting sweep", "folders", len(eligible), "listed", len(all))

		records, err = h.sweep(s, eligible)
		return err
	})
	if err != nil {
		return nil, err
	}
	h.logger.Info("sweep finished", "records", len(records))
	return records, nil
}

func (h *Harvester) sweep(s *mailbox.Session, folders []string) ([]extract.Record, error) {
	cur := traversal.New(s, folders, h.logger)
	ctrl := recovery.New(resumer{session: s, cursor: cur}, h.logger, h.metrics)

	var (
		records []extract.Record
		retry   recovery.RetryState
	)
	for cur.HasNext() {
		msg, err := cur.Next()
		folder := cur.CurrentFolder()
		if retry.Enter(folder) {
			h.metrics.FoldersVisited.Inc()
		}

		var rec extract.Record
		if err == nil {
			rec, err = extract.Extract(msg, folder)
		}
		if err != nil {
			if errors.Is(err, mailbox.ErrExhausted) {
				return records, err
			}
			if out := ctrl.Fail(&retry, err); out.Phase == recovery.Aborted {
				return records, out.Err
			}
			continue
		}

		rec.Position = cur.Position()
		records = append(records, rec)
		h.metrics.RecordsExtracted.Inc()
		h.logger.Debug("extracted", "from", rec.From, "folder", folder, "received", rec.ReceivedDate)
	}
	return records, nil
}

// resumer reconnects the sweep's session and repositions its cursor.
type resumer struct {
	session *mailbox.Session
	cursor  *traversal.Cursor
}

func (r resumer) Reconnect() error { return r.session.Reconnect() }

func (r resumer) JumpTo(folder string) error { return r.cursor.JumpTo(folder) }
