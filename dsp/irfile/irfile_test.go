package irfile

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wavSpec struct {
	format   uint16
	channels uint16
	rate     uint32
	byteRate uint32
	bits     uint16
	data     []byte
	noData   bool
}

func pcm16(v ...int16) []byte {
	var b bytes.Buffer
	for _, s := range v {
		_ = binary.Write(&b, binary.LittleEndian, s)
	}
	return b.Bytes()
}

func pcm24(v ...int32) []byte {
	out := make([]byte, 0, 3*len(v))
	for _, s := range v {
		u := uint32(s)
		out = append(out, byte(u), byte(u>>8), byte(u>>16))
	}
	return out
}

// buildWAV assembles a canonical RIFF/WAVE image.
func buildWAV(s wavSpec) []byte {
	if s.format == 0 {
		s.format = 1
	}
	if s.byteRate == 0 {
		s.byteRate = s.rate * uint32(s.channels) * uint32(s.bits) / 8
	}
	var body bytes.Buffer
	body.WriteString("WAVE")
	body.WriteString("fmt ")
	le := binary.LittleEndian
	_ = binary.Write(&body, le, uint32(16))
	_ = binary.Write(&body, le, s.format)
	_ = binary.Write(&body, le, s.channels)
	_ = binary.Write(&body, le, s.rate)
	_ = binary.Write(&body, le, s.byteRate)
	_ = binary.Write(&body, le, s.channels*s.bits/8)
	_ = binary.Write(&body, le, s.bits)
	if !s.noData {
		body.WriteString("data")
		_ = binary.Write(&body, le, uint32(len(s.data)))
		body.Write(s.data)
		if len(s.data)%2 == 1 {
			body.WriteByte(0)
		}
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	_ = binary.Write(&out, le, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func decodeSpec(t *testing.T, s wavSpec, opts ...Option) (*IR, error) {
	t.Helper()
	return Decode(bytes.NewReader(buildWAV(s)), "test", opts...)
}

// --- decoding ---

func TestDecode16BitMono(t *testing.T) {
	ir, err := decodeSpec(t, wavSpec{channels: 1, rate: 44100, bits: 16, data: pcm16(32767, -16384, 0)})
	require.NoError(t, err)
	assert.Equal(t, "test", ir.Name)
	assert.Equal(t, 44100, ir.SampleRate)
	assert.Equal(t, 16, ir.BitDepth)
	assert.Equal(t, 1, ir.Channels)
	assert.Equal(t, 1.0, ir.Gain)
	assert.False(t, ir.Truncated)
	require.Len(t, ir.Samples, 3)
	assert.InDelta(t, 1.0, ir.Samples[0], 1e-9)
	assert.InDelta(t, -0.5, ir.Samples[1], 1e-4)
	assert.Equal(t, 0.0, ir.Samples[2])
	assert.InDelta(t, 3.0/44100*1000, ir.LengthMs, 1e-12)
}

func TestDecode24BitStereoKeepsLeft(t *testing.T) {
	ir, err := decodeSpec(t, wavSpec{
		channels: 2, rate: 48000, bits: 24,
		data: pcm24(8388607, -8388607, -4194304, 4194304),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, ir.Channels)
	require.Len(t, ir.Samples, 2)
	assert.InDelta(t, 1.0, ir.Samples[0], 1e-9)
	assert.InDelta(t, -0.5, ir.Samples[1], 1e-6)
}

func TestDecode8BitIsCentered(t *testing.T) {
	ir, err := decodeSpec(t, wavSpec{channels: 1, rate: 44100, bits: 8, data: []byte{255, 128, 1}})
	require.NoError(t, err)
	require.Len(t, ir.Samples, 3)
	assert.InDelta(t, 1.0, ir.Samples[0], 1e-9)
	assert.Equal(t, 0.0, ir.Samples[1])
	assert.InDelta(t, -1.0, ir.Samples[2], 1e-9)
}

func TestDecodeErrors(t *testing.T) {
	good := wavSpec{channels: 1, rate: 44100, bits: 16, data: pcm16(1, 2)}
	with := func(f func(*wavSpec)) []byte {
		s := good
		f(&s)
		return buildWAV(s)
	}
	notWave := buildWAV(good)
	copy(notWave[8:12], "AVI ")

	tests := []struct {
		name string
		data []byte
		opts []Option
		want error
		code Code
	}{
		{"empty", nil, nil, ErrNoHeader, CodeNoHeader},
		{"short", []byte("RIFF\x00\x00"), nil, ErrNoHeader, CodeNoHeader},
		{"not riff", []byte("OggS0000WAVEfmt "), nil, ErrNoRIFF, CodeNoRIFF},
		{"not wave", notWave, nil, ErrNoWAVE, CodeNoWAVE},
		{"float", with(func(s *wavSpec) { s.format = 3 }), nil, ErrNotPCM, CodeNotPCM},
		{"channels", with(func(s *wavSpec) { s.channels = 3; s.data = pcm16(1, 2, 3) }), nil, ErrBadChannels, CodeBadChannels},
		{"bits", with(func(s *wavSpec) { s.bits = 32; s.data = pcm24(1, 2, 3, 4) }), nil, ErrBadBitDepth, CodeBadBitDepth},
		{"byte rate", with(func(s *wavSpec) { s.byteRate = 1234 }), nil, ErrBadByteRate, CodeBadByteRate},
		{"rate", buildWAV(good), []Option{WithSampleRate(48000)}, ErrBadSampleRate, CodeBadSampleRate},
		{"no data", with(func(s *wavSpec) { s.noData = true }), nil, ErrNoData, CodeNoData},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ir, err := Decode(bytes.NewReader(tc.data), tc.name, tc.opts...)
			require.ErrorIs(t, err, tc.want)
			assert.Nil(t, ir)
			assert.Equal(t, tc.code, CodeOf(err))
		})
	}
}

func TestTruncationFadesOut(t *testing.T) {
	data := make([]int16, 300)
	for i := range data {
		data[i] = 16384
	}
	ir, err := decodeSpec(t, wavSpec{channels: 1, rate: 44100, bits: 16, data: pcm16(data...)},
		WithMaxSamples(200), WithFade(10))
	require.NoError(t, err)
	assert.True(t, ir.Truncated)
	require.Len(t, ir.Samples, 200)
	assert.InDelta(t, 0.5, ir.Samples[189], 1e-4)
	assert.Equal(t, 0.0, ir.Samples[199])
	for i := 191; i < 200; i++ {
		assert.LessOrEqual(t, ir.Samples[i], ir.Samples[i-1])
	}
	assert.InDelta(t, 200.0/44100*1000, ir.LengthMs, 1e-12)
}

func TestNormalizeSetsGain(t *testing.T) {
	ir, err := decodeSpec(t, wavSpec{channels: 1, rate: 44100, bits: 16, data: pcm16(0, -16384, 8192)}, WithNormalize())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, ir.Gain, 1e-3)
}

// --- files ---

func writeWAV(t *testing.T, path string, rate int, samples []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greenback 4x12.wav")
	writeWAV(t, path, 48000, []int{32767, 0, -32767, 100})

	ir, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "greenback 4x12", ir.Name)
	assert.Equal(t, 48000, ir.SampleRate)
	require.Len(t, ir.Samples, 4)
	assert.InDelta(t, -1.0, ir.Samples[2], 1e-9)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.wav"))
	require.ErrorIs(t, err, ErrFileNotFound)
	assert.Equal(t, CodeFileNotFound, CodeOf(err))
}

func TestLibraryWalksSortedFiles(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "b.wav"), 44100, []int{2000})
	writeWAV(t, filepath.Join(dir, "a.WAV"), 44100, []int{1000})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.wav"), 0o700))

	lib, err := Scan(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, lib.Len())
	assert.Equal(t, []string{"a.WAV", "b.wav"}, lib.Names())

	ir, err := lib.First()
	require.NoError(t, err)
	assert.Equal(t, "a", ir.Name)

	ir, err = lib.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", ir.Name)
	assert.Equal(t, 1, lib.Index())

	ir, err = lib.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", ir.Name)

	ir, err = lib.Prev()
	require.NoError(t, err)
	assert.Equal(t, "b", ir.Name)

	_, err = lib.Load(5)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestScanEmptyOrMissingDir(t *testing.T) {
	_, err := Scan(t.TempDir())
	assert.ErrorIs(t, err, ErrFileNotFound)
	_, err = Scan(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestCodeStrings(t *testing.T) {
	assert.Equal(t, "OK", CodeOK.String())
	assert.Equal(t, "bad bit depth", CodeBadBitDepth.String())
	assert.Equal(t, "unknown", Code(200).String())
	assert.Equal(t, CodeUnknown, CodeOf(os.ErrPermission))
	assert.Equal(t, CodeOK, CodeOf(nil))
}

func TestFadeOutShortBuffer(t *testing.T) {
	x := []float64{1, 1}
	fadeOut(x, 8)
	assert.InDelta(t, 0.5*(1+math.Cos(math.Pi/2)), x[0], 1e-12)
	assert.Equal(t, 0.0, x[1])
}
