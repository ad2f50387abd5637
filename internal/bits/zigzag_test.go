package bits

import "testing"

func TestFoldUnfoldSigned(t *testing.T) {
	golden := []struct {
		v    int32
		want uint32
	}{
		{v: 0, want: 0},
		{v: -1, want: 1},
		{v: 1, want: 2},
		{v: -2, want: 3},
		{v: 2, want: 4},
		{v: -3, want: 5},
		{v: 3, want: 6},
	}
	for _, g := range golden {
		got := FoldSigned(g.v)
		if got != g.want {
			t.Errorf("FoldSigned(%d) = %d, want %d", g.v, got, g.want)
		}
		back := UnfoldSigned(got)
		if back != g.v {
			t.Errorf("UnfoldSigned(FoldSigned(%d)) = %d, want %d", g.v, back, g.v)
		}
	}
}

func TestFoldUnfoldSigned64(t *testing.T) {
	for _, v := range []int64{0, -1, 1, -2, 2, 1 << 40, -(1 << 40)} {
		got := FoldSigned64(v)
		back := UnfoldSigned64(got)
		if back != v {
			t.Errorf("round-trip(%d) = %d", v, back)
		}
	}
}
