package packaging

import (
	"slices"
	"testing"

	"avpackaging/internal/storage"
)

func TestStateLabel(t *testing.T) {
	cases := map[State]string{
		StateStaging:           "Staging",
		StateResolvingMetadata: "Resolving Metadata",
		StateFailed:            "Failed",
		"":                     "",
	}
	for state, want := range cases {
		if got := state.Label(); got != want {
			t.Fatalf("%q.Label() = %q, want %q", state, got, want)
		}
	}
}

func TestStatesEndWithSucceeded(t *testing.T) {
	states := States()
	if states[0] != StateStaging || states[len(states)-1] != StateSucceeded {
		t.Fatalf("unexpected sequence %v", states)
	}
	for _, s := range states[:len(states)-1] {
		if s.Terminal() {
			t.Fatalf("%s must not be terminal", s)
		}
	}
	if !StateFailed.Terminal() {
		t.Fatal("failed must be terminal")
	}
}

func TestOwnedKeys(t *testing.T) {
	objects := []storage.Object{
		{Key: "abc"},
		{Key: "abc.mkv"},
		{Key: "abc_a.mp4"},
		{Key: "abc/"},
		{Key: "abc/abc_me.mov"},
		{Key: "abc/nested/x.wav"},
		{Key: "abcd.mkv"},
		{Key: "abc_extra/x.wav"},
	}
	got := ownedKeys("abc", objects)
	want := []string{"abc.mkv", "abc/abc_me.mov", "abc/nested/x.wav", "abc_a.mp4"}
	if !slices.Equal(got, want) {
		t.Fatalf("ownedKeys = %v, want %v", got, want)
	}
}
