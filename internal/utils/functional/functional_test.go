package functional

import (
	"strconv"
	"testing"
)

func TestMap(t *testing.T) {
	got := Map([]int{1, 2, 3}, strconv.Itoa)
	want := []string{"1", "2", "3"}
	if len(got) != len(want) {
		t.Fatalf("expected %d elements, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestMapEmpty(t *testing.T) {
	if got := Map(nil, strconv.Itoa); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", got)
	}
}

func TestFilter(t *testing.T) {
	got := Filter([]int{1, 2, 3, 4, 5}, func(n int) bool { return n%2 == 0 })
	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestFilterNoneMatch(t *testing.T) {
	got := Filter([]int{1, 3}, func(n int) bool { return n > 10 })
	if got == nil {
		t.Fatal("expected non-nil empty slice")
	}
	if len(got) != 0 {
		t.Fatalf("expected no elements, got %v", got)
	}
}
