package irfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	vecmath "github.com/cwbudde/algo-vecmath"
	"github.com/cwbudde/algo-pedalfx/dsp/conv"
	"github.com/cwbudde/algo-pedalfx/dsp/transport"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
)

const (
	riffHeaderLen = 12

	// DefaultFade is the fade-out applied when a response is truncated.
	DefaultFade = 64
)

// IR is a decoded impulse response.
type IR struct {
	Name       string
	Samples    []float64
	Gain       float64
	SampleRate int
	BitDepth   int
	Channels   int
	LengthMs   float64
	Truncated  bool
}

// Option configures decoding.
type Option func(*config)

type config struct {
	sampleRate int
	maxSamples int
	fade       int
	normalize  bool
	log        *logrus.Entry
}

// WithSampleRate rejects files whose rate differs from hz with
// ErrBadSampleRate. By default any positive rate is accepted.
func WithSampleRate(hz int) Option {
	return func(c *config) { c.sampleRate = hz }
}

// WithMaxSamples sets the truncation length. It defaults to the longest
// response a cabinet can hold.
func WithMaxSamples(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxSamples = n
		}
	}
}

// WithFade sets the fade-out length applied at a truncation point.
func WithFade(n int) Option {
	return func(c *config) { c.fade = max(n, 0) }
}

// WithNormalize sets IR.Gain so the response peaks at 1.
func WithNormalize() Option {
	return func(c *config) { c.normalize = true }
}

// WithLogger sets the logger for load reports.
func WithLogger(entry *logrus.Entry) Option {
	return func(c *config) {
		if entry != nil {
			c.log = entry
		}
	}
}

func newConfig(opts []Option) config {
	c := config{
		maxSamples: conv.MaxIRSamples,
		fade:       DefaultFade,
		log:        logrus.WithField("component", "irfile"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}

// Load reads the WAV file at path.
func Load(path string, opts ...Option) (*IR, error) {
	cfg := newConfig(opts)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		cfg.log.WithFields(logrus.Fields{"function": "Load", "path": path, "error": err}).Warn("cannot open impulse response")
		return nil, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return decode(f, name, cfg)
}

// Decode reads a WAV stream. Only the first channel is kept.
func Decode(r io.ReadSeeker, name string, opts ...Option) (*IR, error) {
	return decode(r, name, newConfig(opts))
}

func decode(r io.ReadSeeker, name string, cfg config) (*IR, error) {
	logger := cfg.log.WithFields(logrus.Fields{"function": "Decode", "name": name})
	ir, err := readWAV(r, name, cfg)
	if err != nil {
		logger.WithFields(logrus.Fields{"code": CodeOf(err).String(), "error": err}).Warn("impulse response rejected")
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"samples":    len(ir.Samples),
		"sampleRate": ir.SampleRate,
		"bitDepth":   ir.BitDepth,
		"lengthMs":   ir.LengthMs,
		"truncated":  ir.Truncated,
	}).Info("impulse response decoded")
	return ir, nil
}

func sniff(r io.ReadSeeker) error {
	var hdr [riffHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrNoHeader, err)
	}
	if string(hdr[0:4]) != "RIFF" {
		return ErrNoRIFF
	}
	if string(hdr[8:12]) != "WAVE" {
		return ErrNoWAVE
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", ErrNoHeader, err)
	}
	return nil
}

func readWAV(r io.ReadSeeker, name string, cfg config) (*IR, error) {
	if err := sniff(r); err != nil {
		return nil, err
	}

	d := wav.NewDecoder(r)
	d.ReadInfo()
	if d.NumChans == 0 || d.BitDepth == 0 {
		return nil, ErrNoFormat
	}
	if d.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: format tag %d", ErrNotPCM, d.WavAudioFormat)
	}
	ch := int(d.NumChans)
	if ch != 1 && ch != 2 {
		return nil, fmt.Errorf("%w: %d", ErrBadChannels, ch)
	}
	rate := int(d.SampleRate)
	if rate <= 0 || (cfg.sampleRate > 0 && rate != cfg.sampleRate) {
		return nil, fmt.Errorf("%w: %d Hz", ErrBadSampleRate, rate)
	}
	bits := int(d.BitDepth)
	if bits != 8 && bits != 16 && bits != 24 {
		return nil, fmt.Errorf("%w: %d", ErrBadBitDepth, bits)
	}
	if want := uint32(rate * ch * bits / 8); d.AvgBytesPerSec != want {
		return nil, fmt.Errorf("%w: %d, want %d", ErrBadByteRate, d.AvgBytesPerSec, want)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoData, err)
	}
	if buf == nil || len(buf.Data) < ch {
		return nil, ErrNoData
	}
	if bits == 8 {
		// 8-bit WAV is unsigned.
		for i, v := range buf.Data {
			buf.Data[i] = v - 128
		}
	}
	buf.Format = &audio.Format{NumChannels: ch, SampleRate: rate}
	buf.SourceBitDepth = bits

	frames := len(buf.Data) / ch
	left := make([]float64, frames)
	right := make([]float64, frames)
	if _, err := transport.FromIntBuffer(left, right, buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoData, err)
	}

	ir := &IR{
		Name:       name,
		Samples:    left,
		Gain:       1,
		SampleRate: rate,
		BitDepth:   bits,
		Channels:   ch,
	}
	if len(ir.Samples) > cfg.maxSamples {
		ir.Samples = ir.Samples[:cfg.maxSamples]
		fadeOut(ir.Samples, cfg.fade)
		ir.Truncated = true
	}
	if cfg.normalize {
		if peak := peakAbs(ir.Samples); peak > 0 {
			ir.Gain = 1 / peak
		}
	}
	ir.LengthMs = float64(len(ir.Samples)) / float64(rate) * 1000
	return ir, nil
}

// fadeOut applies a raised-cosine fade to the last n samples of x, ending
// at zero.
func fadeOut(x []float64, n int) {
	n = min(n, len(x))
	if n == 0 {
		return
	}
	ramp := make([]float64, n)
	for i := range ramp {
		ramp[i] = 0.5 * (1 + math.Cos(math.Pi*float64(i+1)/float64(n)))
	}
	vecmath.MulBlockInPlace(x[len(x)-n:], ramp)
}

func peakAbs(x []float64) float64 {
	var p float64
	for _, v := range x {
		p = max(p, math.Abs(v))
	}
	return p
}
