package bwfilter

import "testing"

func TestFilterTracksMaxWithinWindow(t *testing.T) {
	f := New(10)
	f.Update(100, 0)
	f.Update(200, 1)
	f.Update(50, 2)

	if got := f.Best(); got != 200 {
		t.Errorf("Best() = %d, want 200", got)
	}
}

func TestFilterExpiresStaleMax(t *testing.T) {
	f := New(3)
	f.Update(500, 0)
	f.Update(10, 1)
	f.Update(10, 2)
	f.Update(10, 3)
	// By time 4, sample at time 0 (the only one >= window ago depending on
	// eviction) should no longer dominate forever; feed enough samples to
	// push well past the window.
	f.Update(10, 4)
	f.Update(10, 5)

	if got := f.Best(); got == 500 {
		t.Errorf("Best() = %d, want the stale max to have expired", got)
	}
}

func TestFilterNewMaxResetsWindow(t *testing.T) {
	f := New(10)
	f.Update(100, 0)
	f.Update(50, 1)
	f.Update(300, 2)

	if got := f.Best(); got != 300 {
		t.Errorf("Best() = %d, want 300", got)
	}
}

func TestFilterSingleSample(t *testing.T) {
	f := New(10)
	f.Update(42, 0)
	if got := f.Best(); got != 42 {
		t.Errorf("Best() = %d, want 42", got)
	}
}
