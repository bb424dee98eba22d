package effectchain

import (
	"path/filepath"

	"github.com/cwbudde/algo-pedalfx/dsp/irfile"
	"github.com/sirupsen/logrus"
)

// Context provides environmental information that effect runtimes need.
type Context struct {
	SampleRate float64
	BlockSize  int
	Logger     *logrus.Entry
}

// IRProvider resolves the impulse response a cabinet node names, without
// the rack depending on where responses are stored.
type IRProvider interface {
	LoadIR(name string) (*irfile.IR, error)
}

// FileIRProvider loads responses from WAV files. Relative names resolve
// against Dir.
type FileIRProvider struct {
	Dir     string
	Options []irfile.Option
}

// LoadIR implements IRProvider.
func (f FileIRProvider) LoadIR(name string) (*irfile.IR, error) {
	path := name
	if f.Dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(f.Dir, name)
	}

	return irfile.Load(path, f.Options...)
}
