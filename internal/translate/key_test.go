package translate

import "testing"

func TestBlockKey(t *testing.T) {
	got := BlockKey("dev1", 0)
	want := "dev1/0000000000000000"
	if got != want {
		t.Errorf("BlockKey(dev1, 0) = %q, want %q", got, want)
	}

	got = BlockKey("dev1", 255)
	want = "dev1/00000000000000ff"
	if got != want {
		t.Errorf("BlockKey(dev1, 255) = %q, want %q", got, want)
	}
}

func TestComputeLayout(t *testing.T) {
	cases := []struct {
		name           string
		off, length    uint64
		objectSize     uint64
		wantBlockNo1   uint64
		wantBlockOff1  uint64
		wantBlockNo2   uint64
		wantBlockLen2  uint64
	}{
		{"single unaligned write", 5, 4, 16, 0, 5, 0, 9},
		{"head edge spanning two blocks", 10, 20, 16, 0, 10, 1, 14},
		{"head+tail+middle", 10, 40, 16, 0, 10, 3, 2},
		{"block aligned", 32, 32, 16, 2, 0, 4, 0},
		{"misaligned trim probe", 1, 30, 16, 0, 1, 1, 15},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			l := ComputeLayout(c.off, c.length, c.objectSize)
			if l.BlockNo1 != c.wantBlockNo1 || l.BlockOffset1 != c.wantBlockOff1 ||
				l.BlockNo2 != c.wantBlockNo2 || l.BlockLen2 != c.wantBlockLen2 {
				t.Errorf("ComputeLayout(%d, %d, %d) = %+v, want {%d %d %d %d}",
					c.off, c.length, c.objectSize, l,
					c.wantBlockNo1, c.wantBlockOff1, c.wantBlockNo2, c.wantBlockLen2)
			}
		})
	}
}
