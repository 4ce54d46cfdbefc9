// Package dedup remembers which records have already been exported, so
// repeated sweeps of the same mailbox only write new messages.
package dedup

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/tracyhatemice/mailsweep/internal/extract"
)

// Key returns the fingerprint of a record. A re-emission of the same
// message after a folder restart shares its key. The message is identified
// by its Message-ID, or by its folder position when it has none, so
// distinct messages with identical content get distinct keys.
func Key(rec extract.Record) string {
	id := "id:" + rec.MessageID
	if rec.MessageID == "" {
		id = "pos:" + strconv.Itoa(rec.Position)
	}
	h := sha256.New()
	for _, field := range []string{rec.Folder, id, rec.From, rec.ReceivedDate, rec.Content} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Tracker is a set of record keys persisted one per line to a file.
type Tracker struct {
	mu   sync.Mutex
	keys map[string]struct{}
	file string
}

// Open loads (or creates) the tracker backed by path.
func Open(path string) (*Tracker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dedup dir: %w", err)
	}

	t := &Tracker{
		keys: make(map[string]struct{}),
		file: path,
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("open dedup file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if key := strings.TrimSpace(scanner.Text()); key != "" {
			t.keys[key] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dedup file: %w", err)
	}
	return t, nil
}

// Seen reports whether key has been recorded.
func (t *Tracker) Seen(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.keys[key]
	return ok
}

// Mark records key and appends it to the file. Marking a known key is a
// no-op.
func (t *Tracker) Mark(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.keys[key]; ok {
		return nil
	}

	f, err := os.OpenFile(t.file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open dedup file for append: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, key); err != nil {
		return fmt.Errorf("write dedup key: %w", err)
	}
	t.keys[key] = struct{}{}
	return nil
}

// Count returns the number of recorded keys.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.keys)
}
