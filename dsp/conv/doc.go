// Package conv provides the speaker cabinet convolution engine.
//
// # Cabinet
//
// [Cabinet] runs uniformly partitioned overlap-save convolution with
// [BlockSize]-sample partitions and [FFTSize]-point transforms. Impulse
// responses up to [MaxIRSamples] long are split into at most
// [MaxPartitions] spectra ("masks"). The stereo input is packed into one
// complex signal, so each block costs one forward and one inverse FFT
// regardless of channel count:
//
//	cab, err := conv.NewCabinet(conv.WithCabinetProcessorOptions(core.WithSampleRate(48000)))
//	if err != nil { ... }
//	if err := cab.Load(ir, 1); err != nil { ... }
//	cab.ProcessBlock(inL, inR, outL, outR)
//
// Host blocks of any length are accepted. An internal FIFO regroups them
// into partitions, which delays the output by [BlockSize] samples
// ([Cabinet.Latency]).
//
// Impulse responses can be swapped while audio runs. [Cabinet.Load]
// computes the masks on the caller's goroutine and publishes them
// atomically. [Cabinet.BeginLoad] instead hands the work to ProcessBlock,
// one partition per block. Either way the audio path restarts from a
// clean history when the new masks go live.
//
// The optional doubler widens a mono cabinet: both channels are voiced by
// short FIR filters and the right channel is inverted and delayed by about
// 13 ms around the convolution.
package conv
