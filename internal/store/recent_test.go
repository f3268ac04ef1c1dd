package store

import (
	"fmt"
	"testing"

	"songswipe/internal/core"
)

func track(id string) core.Track {
	return core.Track{ID: id, Title: "t" + id, Provider: core.ProviderDeezer}
}

func TestRecentTracks_Basic(t *testing.T) {
	recent := NewRecentTracks(100, 0.001)

	if recent.Seen(track("1")) {
		t.Error("Empty store should not have seen any track")
	}

	recent.MarkShown(track("1"), track("2"))
	if !recent.Seen(track("1")) || !recent.Seen(track("2")) {
		t.Error("Store should have seen marked tracks")
	}
	if recent.Len() != 2 {
		t.Errorf("Len() = %d, want 2", recent.Len())
	}

	recent.MarkShown(track("1"))
	if recent.Len() != 2 {
		t.Errorf("Len() = %d after duplicate mark, want 2", recent.Len())
	}
}

func TestRecentTracks_ProviderScopedKeys(t *testing.T) {
	recent := NewRecentTracks(10, 0.001)
	recent.MarkShown(core.Track{ID: "42", Provider: core.ProviderDeezer})

	if recent.Seen(core.Track{ID: "42", Provider: core.ProviderITunes}) {
		t.Error("Same id from another provider is a different track")
	}
}

func TestRecentTracks_Eviction(t *testing.T) {
	recent := NewRecentTracks(10, 0.001)

	for i := range 35 {
		recent.MarkShown(track(fmt.Sprintf("%d", i)))
	}

	if recent.Len() != 10 {
		t.Errorf("Len() = %d, want capacity 10", recent.Len())
	}
	if recent.Seen(track("0")) {
		t.Error("Oldest track should have been evicted")
	}
	for i := 25; i < 35; i++ {
		if !recent.Seen(track(fmt.Sprintf("%d", i))) {
			t.Errorf("Track %d should still be remembered", i)
		}
	}
}

func TestRecentTracks_Fresh(t *testing.T) {
	recent := NewRecentTracks(10, 0.001)
	recent.MarkShown(track("b"))

	fresh := recent.Fresh([]core.Track{track("a"), track("b"), track("c")})
	if len(fresh) != 2 || fresh[0].ID != "a" || fresh[1].ID != "c" {
		t.Errorf("Fresh() = %+v, want a and c in order", fresh)
	}
}

func TestRecentTracks_Reset(t *testing.T) {
	recent := NewRecentTracks(10, 0.001)
	recent.MarkShown(track("a"))
	recent.Reset()

	if recent.Seen(track("a")) || recent.Len() != 0 {
		t.Error("Reset() should forget all tracks")
	}
}

func BenchmarkRecentTracks_Seen(b *testing.B) {
	recent := NewRecentTracks(1000, 0.001)
	for i := range 1000 {
		recent.MarkShown(track(fmt.Sprintf("%d", i)))
	}
	probe := track("missing")

	b.ResetTimer()
	for range b.N {
		recent.Seen(probe)
	}
}
