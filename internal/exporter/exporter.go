// Package exporter runs a sweep and writes the records it has not
// written before as JSON lines.
package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/tracyhatemice/mailsweep/internal/dedup"
	"github.com/tracyhatemice/mailsweep/internal/extract"
)

// Sweeper runs a full sweep. *harvest.Harvester implements it.
type Sweeper interface {
	Sweep(includes, excludes []string) ([]extract.Record, error)
}

// Result summarizes one export.
type Result struct {
	Swept     int // records returned by the sweep
	Written   int // records written to the output
	Duplicate int // records skipped as already written
}

// Exporter writes new sweep records to out.
type Exporter struct {
	sweeper Sweeper
	tracker *dedup.Tracker
	out     io.Writer
	logger  *slog.Logger
}

// New creates an Exporter.
func New(sweeper Sweeper, tracker *dedup.Tracker, out io.Writer, logger *slog.Logger) *Exporter {
	return &Exporter{
		sweeper: sweeper,
		tracker: tracker,
		out:     out,
		logger:  logger,
	}
}

// Run sweeps the given folders and writes every unseen record.
func (e *Exporter) Run(includes, excludes []string) (Result, error) {
	records, err := e.sweeper.Sweep(includes, excludes)
	if err != nil {
		return Result{}, fmt.Errorf("sweep: %w", err)
	}

	res := Result{Swept: len(records)}
	enc := json.NewEncoder(e.out)
	for _, rec := range records {
		key := dedup.Key(rec)
		if e.tracker.Seen(key) {
			res.Duplicate++
			continue
		}

		if err := enc.Encode(rec); err != nil {
			return res, fmt.Errorf("write record: %w", err)
		}
		res.Written++

		if err := e.tracker.Mark(key); err != nil {
			e.logger.Error("mark seen failed", "folder", rec.Folder, "from", rec.From, "error", err)
		}
	}

	e.logger.Info("export finished",
		"swept", res.Swept,
		"written", res.Written,
		"duplicates", res.Duplicate,
	)
	return res, nil
}
