package core

import "testing"

func TestCopyOrZero(t *testing.T) {
	dst := []float64{9, 9, 9}
	CopyOrZero(dst, nil)
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("nil src: dst[%d] = %v", i, v)
		}
	}

	CopyOrZero(dst, []float64{1, 2})
	if dst[0] != 1 || dst[1] != 2 || dst[2] != 0 {
		t.Fatalf("short src: %v", dst)
	}

	CopyOrZero(dst[:2], []float64{4, 5, 6})
	if dst[0] != 4 || dst[1] != 5 || dst[2] != 0 {
		t.Fatalf("long src: %v", dst)
	}
}
