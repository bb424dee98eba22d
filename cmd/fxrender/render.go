package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/cwbudde/algo-pedalfx/dsp/effectchain"
	"github.com/cwbudde/algo-pedalfx/dsp/irfile"
	"github.com/cwbudde/algo-pedalfx/dsp/transport"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
)

// writeChunk is the number of frames handed to the encoder at a time.
const writeChunk = 4096

var errInvalidWAV = errors.New("invalid WAV file")

type renderOptions struct {
	inputPath   string
	outputPath  string
	presetPath  string
	irPath      string
	tailSeconds float64
	bitDepth    int
}

type renderStats struct {
	sampleRate int
	bitDepth   int
	frames     int
	nodes      int
	latency    int
}

// wavInput is a decoded input file as stereo floats.
type wavInput struct {
	l, r       []float64
	sampleRate int
	bitDepth   int
	channels   int
}

func renderFile(opts renderOptions, log *logrus.Entry) (*renderStats, error) {
	if opts.bitDepth != 0 && opts.bitDepth != 16 && opts.bitDepth != 24 && opts.bitDepth != 32 {
		return nil, fmt.Errorf("%w: %d", transport.ErrBitDepth, opts.bitDepth)
	}

	in, err := readInput(opts.inputPath, log)
	if err != nil {
		return nil, err
	}

	chain, err := buildChain(opts, in.sampleRate, log)
	if err != nil {
		return nil, err
	}

	// Render latency extra frames and drop them from the front so the
	// output lines up with the input.
	latency := chain.Latency()
	pad := int(opts.tailSeconds*float64(in.sampleRate)) + latency
	l := append(in.l, make([]float64, pad)...)
	r := append(in.r, make([]float64, pad)...)

	if err := chain.Process(l, r); err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}
	l, r = l[latency:], r[latency:]

	bits := opts.bitDepth
	if bits == 0 {
		bits = max(in.bitDepth, 16)
	}

	if err := writeOutput(opts.outputPath, l, r, in.sampleRate, bits); err != nil {
		return nil, err
	}

	return &renderStats{
		sampleRate: in.sampleRate,
		bitDepth:   bits,
		frames:     len(l),
		nodes:      len(chain.Nodes()),
		latency:    latency,
	}, nil
}

// readInput decodes a mono or stereo integer PCM file.
func readInput(path string, log *logrus.Entry) (*wavInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", errInvalidWAV, path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	in := &wavInput{
		sampleRate: int(dec.SampleRate),
		bitDepth:   int(dec.BitDepth),
		channels:   int(dec.NumChans),
	}

	if in.bitDepth == 8 {
		for i, v := range buf.Data {
			buf.Data[i] = v - 128
		}
	}

	buf.Format = &audio.Format{NumChannels: in.channels, SampleRate: in.sampleRate}
	buf.SourceBitDepth = in.bitDepth

	frames := len(buf.Data) / max(in.channels, 1)
	in.l = make([]float64, frames)
	in.r = make([]float64, frames)

	if _, err := transport.FromIntBuffer(in.l, in.r, buf); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidWAV, err)
	}

	log.WithFields(logrus.Fields{
		"function":   "readInput",
		"path":       path,
		"sampleRate": in.sampleRate,
		"bitDepth":   in.bitDepth,
		"channels":   in.channels,
		"frames":     frames,
	}).Debug("input decoded")

	return in, nil
}

// fixedIRProvider serves one file whatever name a node asks for.
type fixedIRProvider struct {
	path string
	opts []irfile.Option
}

func (p fixedIRProvider) LoadIR(string) (*irfile.IR, error) {
	return irfile.Load(p.path, p.opts...)
}

// cabinetPreset is the rack used when no preset file is given.
func cabinetPreset(irPath string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"name": "cabinet",
		"nodes": []map[string]any{
			{"id": "cab", "type": effectchain.TypeCabinet, "params": map[string]any{"ir": irPath}},
		},
	})
}

func buildChain(opts renderOptions, sampleRate int, log *logrus.Entry) (*effectchain.Chain, error) {
	irOpts := []irfile.Option{irfile.WithSampleRate(sampleRate), irfile.WithLogger(log)}

	var provider effectchain.IRProvider = effectchain.FileIRProvider{Options: irOpts}
	if opts.irPath != "" {
		provider = fixedIRProvider{path: opts.irPath, opts: irOpts}
	}

	chain, err := effectchain.New(
		effectchain.Context{SampleRate: float64(sampleRate), Logger: log},
		effectchain.DefaultRegistry(effectchain.WithIRProvider(provider)),
	)
	if err != nil {
		return nil, err
	}

	switch {
	case opts.presetPath != "":
		err = chain.LoadPresetFile(opts.presetPath)
	case opts.irPath != "":
		var raw []byte

		raw, err = cabinetPreset(opts.irPath)
		if err == nil {
			err = chain.LoadPreset(raw)
		}
	default:
		log.Warn("no preset or impulse response given, output equals input")
	}

	if err != nil {
		return nil, err
	}

	return chain, nil
}

// writeOutput encodes stereo floats as integer PCM.
func writeOutput(path string, l, r []float64, sampleRate, bitDepth int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, 2, 1)
	buf := &audio.IntBuffer{}

	for pos := 0; pos < len(l); pos += writeChunk {
		end := min(pos+writeChunk, len(l))

		if err := transport.ToIntBuffer(buf, l[pos:end], r[pos:end], sampleRate, bitDepth); err != nil {
			return err
		}

		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("failed to write audio data: %w", err)
		}
	}

	return enc.Close()
}
