package core

// CopyOrZero copies src into dst, or zeroes dst when src is nil.
// A nil src stands for an absent input block.
func CopyOrZero(dst, src []float64) {
	if src == nil {
		clear(dst)
		return
	}
	n := copy(dst, src)
	clear(dst[n:])
}
