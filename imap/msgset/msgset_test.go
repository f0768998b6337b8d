package msgset

import "testing"

func TestSequenceRendering(t *testing.T) {
	s := ByNumber(1, 5)
	s.AddNumber(7)
	s.AddNumber(15, Infinity)

	got := s.Sequence()
	want := "1:5,7,15:*"
	if got != want {
		t.Fatalf("Sequence() = %q, want %q", got, want)
	}
}

func TestSequenceRoundTrip(t *testing.T) {
	cases := []string{"1", "1:5", "1:5,7,15:*", "4,2:3"}
	for _, c := range cases {
		s, err := Parse(KindNumber, c)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c, err)
		}
		if got := s.Sequence(); got != c {
			t.Fatalf("round trip %q -> %q", c, got)
		}
	}
}

func TestNumbersExpandsInclusive(t *testing.T) {
	s := ByNumber(1, 3)
	s.AddNumber(10)
	got := s.Numbers()
	want := []uint32{1, 2, 3, 10}
	if len(got) != len(want) {
		t.Fatalf("Numbers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Numbers()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestNumbersUndefinedForUIDSet(t *testing.T) {
	s := ByUID(1, 5)
	if got := s.Numbers(); got != nil {
		t.Fatalf("Numbers() on UID set = %v, want nil", got)
	}
}

func TestNumbersUndefinedForWildcard(t *testing.T) {
	s := ByNumber(1, Infinity)
	if got := s.Numbers(); got != nil {
		t.Fatalf("Numbers() on wildcard set = %v, want nil", got)
	}
}

func TestAddRangeHomogeneityPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic mixing kinds")
		}
	}()
	s := ByNumber(1)
	s.AddUID(2)
}

func TestSingleBoundRendersBare(t *testing.T) {
	s := ByNumber(42)
	if got := s.Sequence(); got != "42" {
		t.Fatalf("Sequence() = %q, want %q", got, "42")
	}
}
