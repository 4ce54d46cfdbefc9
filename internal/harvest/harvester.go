// Package harvest exposes the three mailbox operations: folder listing,
// inbox pagination, and the full multi-folder sweep.
package harvest

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/tracyhatemice/mailsweep/internal/config"
	"github.com/tracyhatemice/mailsweep/internal/extract"
	"github.com/tracyhatemice/mailsweep/internal/mailbox"
	"github.com/tracyhatemice/mailsweep/internal/metrics"
)

// ErrInvalidPage is returned for a page number or size below 1.
var ErrInvalidPage = errors.New("page number and size must be positive")

// Harvester runs operations against one mailbox account. Every call
// opens its own session and closes it before returning.
type Harvester struct {
	cfg     config.Mailbox
	dialer  mailbox.Dialer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Harvester. A nil m gets a private set of counters.
func New(cfg config.Mailbox, dialer mailbox.Dialer, logger *slog.Logger, m *metrics.Metrics) *Harvester {
	if m == nil {
		m = metrics.New()
	}
	return &Harvester{
		cfg:     cfg,
		dialer:  dialer,
		logger:  logger,
		metrics: m,
	}
}

// withSession connects, runs fn, and always disconnects afterwards.
func (h *Harvester) withSession(fn func(s *mailbox.Session) error) error {
	s := mailbox.NewSession(h.cfg, h.dialer, h.logger)
	if err := s.Connect(); err != nil {
		return err
	}
	defer s.Disconnect()
	return fn(s)
}

// ListFolders returns every folder name in server order. A connection
// failure returns nil and a *mailbox.ConnectError.
func (h *Harvester) ListFolders() ([]string, error) {
	var folders []string
	err := h.withSession(func(s *mailbox.Session) error {
		var err error
		folders, err = s.ListFolders()
		if err != nil {
			return fmt.Errorf("list folders: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	h.logger.Info("listed folders", "count", len(folders))
	return folders, nil
}

// ListInboxMessages returns the records at positions
// (page-1)*size+1 .. page*size of the default folder. Unlike Sweep it
// does not recover from read failures; the first one aborts the call.
func (h *Harvester) ListInboxMessages(page, size int) ([]extract.Record, error) {
	if page < 1 || size < 1 {
		return nil, ErrInvalidPage
	}
	inbox := h.cfg.GetInboxFolder()

	var records []extract.Record
	err := h.withSession(func(s *mailbox.Session) error {
		f, err := s.OpenFolder(inbox)
		if err != nil {
			return err
		}

		start, end, ok := pageBounds(page, size)
		if !ok {
			records = []extract.Record{}
			return nil
		}
		msgs, err := f.Messages(start, end)
		if err != nil {
			return fmt.Errorf("fetch page %d of %s: %w", page, inbox, err)
		}

		records = make([]extract.Record, 0, len(msgs))
		for i, msg := range msgs {
			rec, err := extract.Extract(msg, inbox)
			if err != nil {
				return err
			}
			rec.Position = start + i
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	h.metrics.RecordsExtracted.Add(float64(len(records)))
	h.logger.Info("listed inbox page", "folder", inbox, "page", page, "size", size, "records", len(records))
	return records, nil
}

// pageBounds returns the 1-based inclusive positions of page. ok is false
// when the page starts beyond math.MaxInt, which no folder can reach.
func pageBounds(page, size int) (start, end int, ok bool) {
	if page-1 > (math.MaxInt-1)/size {
		return 0, 0, false
	}
	start = (page-1)*size + 1
	if start > math.MaxInt-(size-1) {
		return start, math.MaxInt, true
	}
	return start, start + size - 1, true
}
