package catalog

import (
	"songswipe/internal/core"
	"songswipe/pkg/fuzzy"
)

// PickExact returns the first playable track that fuzzy-matches title and artist.
// When none matches it falls back to the first playable result, and to nil when nothing is playable.
func PickExact(normalizer *fuzzy.Normalizer, tracks []core.Track, title, artist string) *core.Track {
	var firstPlayable *core.Track
	for i := range tracks {
		if !tracks[i].Playable() {
			continue
		}
		if normalizer.Matches(title, artist, tracks[i].Title, tracks[i].ArtistName) {
			track := tracks[i]
			return &track
		}
		if firstPlayable == nil {
			track := tracks[i]
			firstPlayable = &track
		}
	}
	return firstPlayable
}
