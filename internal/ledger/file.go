package ledger

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/komiyamma/imageplan/internal/util"
)

// File is a ledger persisted on disk.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

// Load parses the ledger file. A missing file yields an empty ledger with
// the canonical header; any other read failure wraps ErrLedgerUnreadable.
func (f *File) Load() (*Ledger, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLedgerUnreadable, f.path, err)
	}
	return Parse(string(data)), nil
}

// Append adds e as a newline-terminated row at the end of the file, creating
// the file with the canonical header when absent. Existing bytes are never
// rewritten.
func (f *File) Append(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	file, err := os.OpenFile(f.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrLedgerUnreadable, f.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", ErrLedgerUnreadable, f.path, err)
	}

	var payload []byte
	if info.Size() == 0 {
		for _, line := range CanonicalHeader() {
			payload = append(payload, line...)
		}
	} else {
		last := make([]byte, 1)
		if _, err := file.ReadAt(last, info.Size()-1); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: read %s: %v", ErrLedgerUnreadable, f.path, err)
		}
		if last[0] != '\n' {
			payload = append(payload, '\n')
		}
	}
	payload = append(payload, FormatRow(e)...)
	payload = append(payload, '\n')

	if _, err := file.Write(payload); err != nil {
		return fmt.Errorf("append ledger row: %w", err)
	}
	return nil
}

// Save replaces the whole file with l. Used by maintenance passes only.
func (f *File) Save(l *Ledger) error {
	if err := util.WriteFileAtomic(f.path, []byte(l.Serialize()), 0o644); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// NextID returns the identifier for the next appended entry: one past the
// largest existing ID, or 1 for an empty ledger. The maximum is taken over
// all rows since rows may be reordered by hand.
func NextID(entries []Entry) int {
	highest := 0
	for _, e := range entries {
		if e.ID > highest {
			highest = e.ID
		}
	}
	return highest + 1
}
