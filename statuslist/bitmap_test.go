package statuslist

import "testing"

func TestSetAndGetBit(t *testing.T) {
	var bm []byte
	bm = setBit(bm, 0)
	bm = setBit(bm, 9)
	bm = setBit(bm, 17)

	cases := []struct {
		idx  int64
		want bool
	}{
		{0, true}, {1, false}, {9, true}, {17, true}, {16, false}, {100, false},
	}
	for _, c := range cases {
		if got := getBit(bm, c.idx); got != c.want {
			t.Errorf("getBit(%d) = %v, want %v", c.idx, got, c.want)
		}
	}
}

func TestBitmapSize(t *testing.T) {
	cases := []struct {
		max  int64
		want int
	}{
		{-1, 0}, {0, 1}, {7, 1}, {8, 2}, {15, 2}, {16, 3},
	}
	for _, c := range cases {
		if got := bitmapSize(c.max); got != c.want {
			t.Errorf("bitmapSize(%d) = %d, want %d", c.max, got, c.want)
		}
	}
}

func TestGetBitOutOfRangeIsFalse(t *testing.T) {
	bm := []byte{0xFF}
	if getBit(bm, 8) {
		t.Fatal("expected out-of-range bit to read false")
	}
	if getBit(bm, -1) {
		t.Fatal("expected negative index to read false")
	}
}
