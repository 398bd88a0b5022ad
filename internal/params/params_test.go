package params

import (
	"reflect"
	"testing"
)

func TestArgsSortedAndSearchLast(t *testing.T) {
	s := New(map[string]string{"--preset": "4", "--input-depth": "10"})
	s.SearchName = "--crf"
	s.SearchValue = 27.5

	got := s.Args()
	want := []string{"--input-depth", "10", "--preset", "4", "--crf", "27.5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}
}

func TestArgsValuelessFlag(t *testing.T) {
	s := New(map[string]string{"--progress": ""})
	got := s.Args()
	want := []string{"--progress"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}
}

func TestMergeOverlaysFlags(t *testing.T) {
	base := New(map[string]string{"--preset": "4", "--tune": "0"})
	patch := New(map[string]string{"--preset": "8"})

	merged := base.Merge(patch)
	if merged.Flags["--preset"] != "8" {
		t.Errorf("merged preset = %q, want %q", merged.Flags["--preset"], "8")
	}
	if merged.Flags["--tune"] != "0" {
		t.Errorf("merged tune = %q, want %q", merged.Flags["--tune"], "0")
	}
	// Base must not be mutated.
	if base.Flags["--preset"] != "4" {
		t.Errorf("base preset mutated to %q", base.Flags["--preset"])
	}
}

func TestMergeReplacesSearchParam(t *testing.T) {
	base := New(nil)
	base.SearchName = "--crf"
	base.SearchValue = 30

	patch := New(nil)
	patch.SearchName = "--qp"
	patch.SearchValue = 40

	merged := base.Merge(patch)
	if merged.SearchName != "--qp" || merged.SearchValue != 40 {
		t.Errorf("merged search = %s=%v, want --qp=40", merged.SearchName, merged.SearchValue)
	}
}

func TestFingerprintStable(t *testing.T) {
	a := New(map[string]string{"--preset": "4", "--tune": "0"})
	b := New(map[string]string{"--tune": "0", "--preset": "4"})
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint should not depend on map iteration order")
	}
}

func TestFingerprintChangesWithValue(t *testing.T) {
	a := New(map[string]string{"--preset": "4"})
	b := a.WithSearchValue(20)
	b.SearchName = "--crf"
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("fingerprint should change when the search parameter changes")
	}
}
