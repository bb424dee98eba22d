package conv

import (
	"github.com/cwbudde/algo-pedalfx/dsp/delay"
	"github.com/cwbudde/algo-pedalfx/dsp/filter/fir"
	"github.com/tphakala/simd/f64"
)

const (
	doublerDelaySeconds = 0.01277
	doublerGainL        = 0.55
	doublerGainR        = 0.65
)

// The doubler voicing kernels: one 30-tap lowpass shifted by a sample per
// filter so the four paths decorrelate.
var (
	doublerPreL = []float64{
		0.000894872763, 0.00020902598, 0.000285242248, 0.000503875781, 0.00207542209, 0.0013392308,
		-0.00476867426, -0.0112718018, -0.00560652791, 0.0158470348, 0.0319586769, 0.0108086104,
		-0.0470990688, -0.0834295526, -0.0208595414, 0.154734746, 0.35352844, 0.441179603,
		0.35352844, 0.154734746, -0.0208595414, -0.0834295526, -0.0470990688, 0.0108086104,
		0.0319586769, 0.0158470348, -0.00560652791, -0.0112718018, -0.00476867426, 0.0013392308,
	}
	doublerPreR = []float64{
		0.00020902598, 0.000285242248, 0.000503875781, 0.00207542209, 0.0013392308, -0.00476867426,
		-0.0112718018, -0.00560652791, 0.0158470348, 0.0319586769, 0.0108086104, -0.0470990688,
		-0.0834295526, -0.0208595414, 0.154734746, 0.35352844, 0.441179603, 0.35352844,
		0.154734746, -0.0208595414, -0.0834295526, -0.0470990688, 0.0108086104, 0.0319586769,
		0.0158470348, -0.00560652791, -0.0112718018, -0.00476867426, 0.0013392308, 0.00207542209,
	}
	doublerPostL = []float64{
		0.000285242248, 0.000503875781, 0.00207542209, 0.0013392308, -0.00476867426, -0.0112718018,
		-0.00560652791, 0.0158470348, 0.0319586769, 0.0108086104, -0.0470990688, -0.0834295526,
		-0.0208595414, 0.154734746, 0.35352844, 0.441179603, 0.35352844, 0.154734746,
		-0.0208595414, -0.0834295526, -0.0470990688, 0.0108086104, 0.0319586769, 0.0158470348,
		-0.00560652791, -0.0112718018, -0.00476867426, 0.0013392308, 0.00207542209, 0.000503875781,
	}
	doublerPostR = []float64{
		0.000503875781, 0.00207542209, 0.0013392308, -0.00476867426, -0.0112718018, -0.00560652791,
		0.0158470348, 0.0319586769, 0.0108086104, -0.0470990688, -0.0834295526, -0.0208595414,
		0.154734746, 0.35352844, 0.441179603, 0.35352844, 0.154734746, -0.0208595414,
		-0.0834295526, -0.0470990688, 0.0108086104, 0.0319586769, 0.0158470348, -0.00560652791,
		-0.0112718018, -0.00476867426, 0.0013392308, 0.00207542209, 0.000503875781, 0,
	}
)

// doubler turns a mono cabinet into a wide stereo pair: both channels are
// voiced by slightly different filters and the right one is inverted and
// delayed by about 13 ms before the convolution, then restored after it.
type doubler struct {
	preL, preR   *fir.Filter
	postL, postR *fir.Filter
	dly          *delay.Line
}

func newDoubler(dly *delay.Line) *doubler {
	return &doubler{
		preL:  fir.New(doublerPreL),
		preR:  fir.New(doublerPreR),
		postL: fir.New(doublerPostL),
		postR: fir.New(doublerPostR),
		dly:   dly,
	}
}

func (d *doubler) pre(l, r []float64) {
	d.preL.ProcessBlock(l)
	d.preR.ProcessBlock(r)
	for i, x := range r {
		r[i] = d.dly.Process(-x)
		d.dly.UpdateIndex()
	}
}

func (d *doubler) post(l, r []float64) {
	d.postL.ProcessBlock(l)
	d.postR.ProcessBlock(r)
	f64.Scale(l, l, doublerGainL)
	f64.Scale(r, r, -doublerGainR)
}

func (d *doubler) reset() {
	d.preL.Reset()
	d.preR.Reset()
	d.postL.Reset()
	d.postR.Reset()
	d.dly.Reset()
}
