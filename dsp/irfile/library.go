package irfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Library is a sorted list of the WAV files in one directory with a
// cursor, for stepping through cabinets one at a time.
type Library struct {
	dir   string
	files []string
	idx   int
	opts  []Option
}

// Scan lists the .wav files in dir. A missing directory, or one without
// WAV files, yields ErrFileNotFound.
func Scan(dir string, opts ...Option) (*Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, dir)
		}
		return nil, err
	}
	lib := &Library{dir: dir, opts: opts}
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			lib.files = append(lib.files, e.Name())
		}
	}
	if len(lib.files) == 0 {
		return nil, fmt.Errorf("%w: no .wav files in %s", ErrFileNotFound, dir)
	}
	slices.Sort(lib.files)
	return lib, nil
}

// Len returns the number of files.
func (l *Library) Len() int { return len(l.files) }

// Index returns the cursor position.
func (l *Library) Index() int { return l.idx }

// Names returns the file names in load order.
func (l *Library) Names() []string { return slices.Clone(l.files) }

// Path returns the full path of file i.
func (l *Library) Path(i int) string {
	return filepath.Join(l.dir, l.files[i])
}

// Load decodes file i and moves the cursor there. The cursor moves even
// if decoding fails, so Next skips a bad file.
func (l *Library) Load(i int) (*IR, error) {
	if i < 0 || i >= len(l.files) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrFileNotFound, i, len(l.files))
	}
	l.idx = i
	return Load(l.Path(i), l.opts...)
}

// First loads the first file.
func (l *Library) First() (*IR, error) { return l.Load(0) }

// Next loads the following file, wrapping to the first.
func (l *Library) Next() (*IR, error) {
	return l.Load((l.idx + 1) % len(l.files))
}

// Prev loads the preceding file, wrapping to the last.
func (l *Library) Prev() (*IR, error) {
	return l.Load((l.idx + len(l.files) - 1) % len(l.files))
}
