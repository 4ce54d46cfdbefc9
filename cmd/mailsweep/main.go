package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tracyhatemice/mailsweep/internal/config"
	"github.com/tracyhatemice/mailsweep/internal/dedup"
	"github.com/tracyhatemice/mailsweep/internal/exporter"
	"github.com/tracyhatemice/mailsweep/internal/harvest"
	"github.com/tracyhatemice/mailsweep/internal/mailbox"
	"github.com/tracyhatemice/mailsweep/internal/metrics"
)

const usage = `usage: mailsweep [-config path] <command> [flags]

commands:
  folders                         list mailbox folders
  inbox  [-page N] [-size M]      list one page of the default folder
  sweep  [-include a,b] [-exclude c]
                                  extract every message of the selected folders
`

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel)

	dialer, err := mailbox.NewDialer(cfg.Mailbox.Protocol)
	if err != nil {
		logger.Error("failed to create dialer", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	h := harvest.New(cfg.Mailbox, dialer, logger, m)

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "folders":
		err = runFolders(h)
	case "inbox":
		err = runInbox(h, args)
	case "sweep":
		err = runSweep(cfg, h, args, logger)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if cfg.Export.MetricsFile != "" {
		if werr := m.WriteTextfile(cfg.Export.MetricsFile); werr != nil {
			logger.Warn("failed to write metrics", "error", werr)
		}
	}

	if err != nil {
		logger.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}

func runFolders(h *harvest.Harvester) error {
	folders, err := h.ListFolders()
	if err != nil {
		return err
	}
	for _, f := range folders {
		fmt.Println(f)
	}
	return nil
}

func runInbox(h *harvest.Harvester, args []string) error {
	fs := flag.NewFlagSet("inbox", flag.ExitOnError)
	page := fs.Int("page", 1, "page number, starting at 1")
	size := fs.Int("size", 20, "messages per page")
	fs.Parse(args)

	records, err := h.ListInboxMessages(*page, *size)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return nil
}

func runSweep(cfg *config.Config, h *harvest.Harvester, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	include := fs.String("include", strings.Join(cfg.Sweep.Includes, ","), "comma-separated folders to visit (default all)")
	exclude := fs.String("exclude", strings.Join(cfg.Sweep.Excludes, ","), "comma-separated folders to skip")
	fs.Parse(args)

	dedupFile := filepath.Join(cfg.Export.GetDataDir(), sanitize(cfg.Mailbox.Username)+".seen")
	tracker, err := dedup.Open(dedupFile)
	if err != nil {
		return err
	}
	logger.Info("loaded dedup state", "file", dedupFile, "seen_count", tracker.Count())

	out, closeOut, err := openOutput(cfg.Export.GetOutput())
	if err != nil {
		return err
	}
	defer closeOut()

	_, err = exporter.New(h, tracker, out, logger).Run(splitList(*include), splitList(*exclude))
	return err
}

// openOutput returns stdout for "-", otherwise path opened for append.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open output: %w", err)
	}
	return f, f.Close, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func sanitize(name string) string {
	if name == "" {
		return "default"
	}
	out := make([]byte, 0, len(name))
	for _, b := range []byte(name) {
		if (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '-' || b == '_' {
			out = append(out, b)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}
