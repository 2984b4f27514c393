package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"artist-census/utils"
)

var (
	// ErrRowWidth is returned when a row's field count differs from the header.
	ErrRowWidth = errors.New("ledger: row width does not match header")
	// ErrHeaderMismatch is returned when an existing file has a different header.
	ErrHeaderMismatch = errors.New("ledger: header mismatch")
)

// Ledger is an append-only CSV file with a single header row and an
// in-memory index over one key column. Appending is the only mutation.
//
// The index is rebuilt by streaming the file once at open and kept current
// on every Append, so membership checks never re-read the file.
type Ledger struct {
	mu     sync.Mutex
	path   string
	header []string
	keyCol int
	index  *utils.KeySet
	rows   int
	torn   int64
}

// OpenLedger opens (without creating) the ledger at path and indexes keyCol.
// The file itself is created with its header on the first Append.
func OpenLedger(path string, header []string, keyCol int) (*Ledger, error) {
	if keyCol < 0 || keyCol >= len(header) {
		return nil, fmt.Errorf("ledger %s: key column %d out of range", filepath.Base(path), keyCol)
	}
	l := &Ledger{
		path:   path,
		header: slices.Clone(header),
		keyCol: keyCol,
		index:  utils.NewKeySet(),
	}
	err := l.Scan(func(row []string) error {
		l.index.Add(row[keyCol])
		l.rows++
		return nil
	})
	if err != nil {
		return nil, err
	}
	if l.torn, err = l.tornBytes(); err != nil {
		return nil, err
	}
	return l, nil
}

// TornBytes returns the size of an unterminated last line found at open.
// It is ignored by Scan and truncated by the next Append.
func (l *Ledger) TornBytes() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.torn
}

func (l *Ledger) tornBytes() (int64, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: open %q: %w", l.path, err)
	}
	defer f.Close()

	size, complete, err := completeLen(f)
	if err != nil {
		return 0, fmt.Errorf("ledger: read %q: %w", l.path, err)
	}
	return size - complete, nil
}

// completeLen returns the file size and the length up to and including its
// last newline. Bytes past that point belong to a row whose write was cut off.
func completeLen(f *os.File) (size, complete int64, err error) {
	info, err := f.Stat()
	if err != nil {
		return 0, 0, err
	}
	size = info.Size()

	buf := make([]byte, 4096)
	for end := size; end > 0; {
		start := max(end-int64(len(buf)), 0)
		chunk := buf[:end-start]
		if _, err := f.ReadAt(chunk, start); err != nil && err != io.EOF {
			return 0, 0, err
		}
		if i := bytes.LastIndexByte(chunk, '\n'); i >= 0 {
			return size, start + int64(i) + 1, nil
		}
		end = start
	}
	return size, 0, nil
}

// Path returns the file path of the ledger.
func (l *Ledger) Path() string { return l.path }

// Header returns a copy of the ledger header.
func (l *Ledger) Header() []string { return slices.Clone(l.header) }

// Has reports whether key has a row in the ledger.
func (l *Ledger) Has(key string) bool {
	return l.index.Contains(key)
}

// Keys returns the distinct keys in order of first appearance.
func (l *Ledger) Keys() []string {
	return l.index.Keys()
}

// KeyCount returns the number of distinct keys.
func (l *Ledger) KeyCount() int {
	return l.index.Size()
}

// Len returns the number of data rows, duplicates included.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows
}

// Present returns the subset of candidates that already have a row.
// It stops early once every distinct candidate has matched.
func (l *Ledger) Present(candidates []string) map[string]struct{} {
	want := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		want[c] = struct{}{}
	}

	found := make(map[string]struct{})
	for c := range want {
		if l.index.Contains(c) {
			found[c] = struct{}{}
			if len(found) == len(want) {
				break
			}
		}
	}
	return found
}

// Append writes rows to the end of the ledger, creating the file and its
// header if absent. Every row is validated before anything is written.
// Rows are not deduplicated; callers filter with Has first. A torn last
// line left by an interrupted write is truncated before the new rows go in.
func (l *Ledger) Append(rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	for i, row := range rows {
		if len(row) != len(l.header) {
			return fmt.Errorf("%w: %s row %d has %d fields, want %d",
				ErrRowWidth, filepath.Base(l.path), i, len(row), len(l.header))
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("ledger: create output dir: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("ledger: open %q: %w", l.path, err)
	}
	defer f.Close()

	size, complete, err := completeLen(f)
	if err != nil {
		return fmt.Errorf("ledger: stat %q: %w", l.path, err)
	}
	if complete < size {
		if err := f.Truncate(complete); err != nil {
			return fmt.Errorf("ledger: truncate torn row of %q: %w", l.path, err)
		}
		l.torn = 0
	}

	w := csv.NewWriter(f)
	if complete == 0 {
		if err := w.Write(l.header); err != nil {
			return fmt.Errorf("ledger: write header: %w", err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("ledger: write rows: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("ledger: sync %q: %w", l.path, err)
	}

	for _, row := range rows {
		l.index.Add(row[l.keyCol])
	}
	l.rows += len(rows)
	return nil
}

// Scan streams every data row to fn in file order. A missing or empty file
// scans as zero rows. An unterminated last line is skipped; a malformed row
// anywhere before it is an error.
func (l *Ledger) Scan(fn func(row []string) error) error {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ledger: open %q: %w", l.path, err)
	}
	defer f.Close()

	_, complete, err := completeLen(f)
	if err != nil {
		return fmt.Errorf("ledger: read %q: %w", l.path, err)
	}

	r := csv.NewReader(io.LimitReader(f, complete))
	r.ReuseRecord = false

	got, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ledger: read header of %q: %w", l.path, err)
	}
	if !slices.Equal(got, l.header) {
		return fmt.Errorf("%w: %s has %v, want %v", ErrHeaderMismatch, filepath.Base(l.path), got, l.header)
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if errors.Is(err, csv.ErrFieldCount) {
				return fmt.Errorf("%w: %s: %v", ErrRowWidth, filepath.Base(l.path), err)
			}
			return fmt.Errorf("ledger: read %q: %w", l.path, err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}
