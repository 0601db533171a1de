package ledger

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rotor/internal/domain"
)

const (
	ledgerSegmentThreshold = 1000
	ledgerMaxSegments      = 100
	entryKeyPrefix         = "entry_"
)

// WALJournal persists ledger entries in a write-ahead log.
type WALJournal struct {
	wal *gowal.Wal
	mu  sync.Mutex
}

// NewWALJournal opens or creates the WAL under dir.
func NewWALJournal(dir string) (*WALJournal, error) {
	if dir == "" {
		return nil, errors.New("ledger WAL dir is required")
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "ledger_",
		SegmentThreshold: ledgerSegmentThreshold,
		MaxSegments:      ledgerMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init ledger WAL")
	}

	return &WALJournal{wal: wal}, nil
}

// Write appends entry at the next WAL index.
func (j *WALJournal) Write(entry domain.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "marshal ledger entry")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Write(j.wal.CurrentIndex()+1, entryKeyPrefix+entry.ID, payload)
}

// Load replays every entry still held by the WAL, oldest first.
func (j *WALJournal) Load() ([]domain.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var entries []domain.Entry
	for msg := range j.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, entryKeyPrefix) {
			continue
		}
		var entry domain.Entry
		if err := json.Unmarshal(msg.Value, &entry); err != nil {
			return nil, errors.Wrapf(err, "decode ledger entry %s", msg.Key)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (j *WALJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Close()
}

// Open builds a ledger. With a non-empty dir it is mirrored to a WAL and
// restored from whatever that WAL already holds.
func Open(dir string, logger *zap.Logger) (*Ledger, error) {
	if dir == "" {
		return New(nil, logger), nil
	}

	journal, err := NewWALJournal(dir)
	if err != nil {
		return nil, err
	}

	restored, err := journal.Load()
	if err != nil {
		_ = journal.Close()
		return nil, errors.Wrap(err, "restore ledger")
	}

	l := New(journal, logger)
	l.Restore(restored)
	return l, nil
}
