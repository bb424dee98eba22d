package transport

import (
	"errors"
	"fmt"

	"github.com/go-audio/audio"
	"github.com/tphakala/simd/f64"
)

// Errors returned when bridging go-audio buffers.
var (
	ErrNilBuffer       = errors.New("transport: nil buffer")
	ErrChannels        = errors.New("transport: unsupported channel count")
	ErrBitDepth        = errors.New("transport: unsupported bit depth")
	ErrFrameMismatched = errors.New("transport: destination too short")
)

// Interleave writes l and r as LRLR... into dst, which must hold
// 2*min(len(l), len(r)) samples.
func Interleave(dst, l, r []float64) {
	n := min(len(l), len(r), len(dst)/2)
	f64.Interleave2(dst[:2*n], l[:n], r[:n])
}

// Deinterleave splits LRLR... src into l and r.
func Deinterleave(l, r, src []float64) {
	n := min(len(l), len(r), len(src)/2)
	for i := range n {
		l[i] = src[2*i]
		r[i] = src[2*i+1]
	}
}

// intFactor returns the int-to-float normalization for a bit depth.
func intFactor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 8:
		return 1.0 / 127.0, nil
	case 16:
		return Int16ToFloatFactor, nil
	case 24:
		return Int24ToFloatFactor, nil
	case 32:
		return Int32ToFloatFactor, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrBitDepth, bitDepth)
}

func quantLimits(bitDepth int) (scale, lo, hi float64, err error) {
	switch bitDepth {
	case 8:
		return 128, -128, 127, nil
	case 16:
		return q15Scale, -32768, 32767, nil
	case 24:
		return q23Scale, -8388608, 8388607, nil
	case 32:
		return q31Scale, -2147483648, 2147483647, nil
	}
	return 0, 0, 0, fmt.Errorf("%w: %d", ErrBitDepth, bitDepth)
}

// FromIntBuffer converts an interleaved go-audio buffer into stereo
// float blocks. Mono input is copied to both channels and channels beyond
// the second are ignored. The bit depth is buf.SourceBitDepth. It returns
// the number of frames written.
func FromIntBuffer(l, r []float64, buf *audio.IntBuffer) (int, error) {
	if buf == nil || buf.Format == nil {
		return 0, ErrNilBuffer
	}
	ch := buf.Format.NumChannels
	if ch < 1 {
		return 0, fmt.Errorf("%w: %d", ErrChannels, ch)
	}
	factor, err := intFactor(buf.SourceBitDepth)
	if err != nil {
		return 0, err
	}
	frames := len(buf.Data) / ch
	if len(l) < frames || len(r) < frames {
		return 0, fmt.Errorf("%w: %d frames into %d/%d", ErrFrameMismatched, frames, len(l), len(r))
	}
	for i := range frames {
		l[i] = float64(buf.Data[i*ch])
		if ch > 1 {
			r[i] = float64(buf.Data[i*ch+1])
		}
	}
	f64.Scale(l[:frames], l[:frames], factor)
	if ch > 1 {
		f64.Scale(r[:frames], r[:frames], factor)
	} else {
		copy(r[:frames], l[:frames])
	}
	return frames, nil
}

// ToIntBuffer converts stereo float blocks into buf.Data as interleaved
// integers at bitDepth, with saturation. buf.Data is resized to fit and
// buf.Format is set to two channels at sampleRate.
func ToIntBuffer(buf *audio.IntBuffer, l, r []float64, sampleRate, bitDepth int) error {
	if buf == nil {
		return ErrNilBuffer
	}
	scale, lo, hi, err := quantLimits(bitDepth)
	if err != nil {
		return err
	}
	n := min(len(l), len(r))
	if cap(buf.Data) >= 2*n {
		buf.Data = buf.Data[:2*n]
	} else {
		buf.Data = make([]int, 2*n)
	}
	for i := range n {
		buf.Data[2*i] = int(quantize(l[i], scale, lo, hi))
		buf.Data[2*i+1] = int(quantize(r[i], scale, lo, hi))
	}
	buf.Format = &audio.Format{NumChannels: 2, SampleRate: sampleRate}
	buf.SourceBitDepth = bitDepth
	return nil
}
