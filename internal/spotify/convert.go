package spotify

import (
	"github.com/zmb3/spotify/v2"

	"songswipe/internal/catalog"
	"songswipe/internal/core"
)

func toRecord(t spotify.SimpleTrack, album spotify.SimpleAlbum) catalog.SpotifyTrack {
	rec := catalog.SpotifyTrack{
		ID:          string(t.ID),
		Name:        t.Name,
		AlbumName:   album.Name,
		PreviewURL:  t.PreviewURL,
		ExternalURL: t.ExternalURLs["spotify"],
	}
	for _, a := range t.Artists {
		rec.Artists = append(rec.Artists, a.Name)
	}
	for _, img := range album.Images {
		rec.AlbumImages = append(rec.AlbumImages, img.URL)
	}
	return rec
}

func convertFullTracks(in []spotify.FullTrack) []core.Track {
	records := make([]catalog.SpotifyTrack, 0, len(in))
	for _, t := range in {
		records = append(records, toRecord(t.SimpleTrack, t.Album))
	}
	return catalog.NormalizeAll(records)
}

func convertSimpleTracks(in []spotify.SimpleTrack) []core.Track {
	records := make([]catalog.SpotifyTrack, 0, len(in))
	for _, t := range in {
		records = append(records, toRecord(t, t.Album))
	}
	return catalog.NormalizeAll(records)
}

func convertArtists(in []spotify.FullArtist) []core.Artist {
	artists := make([]core.Artist, 0, len(in))
	for _, a := range in {
		if a.ID == "" || a.Name == "" {
			continue
		}
		artist := core.Artist{ID: string(a.ID), DisplayName: a.Name}
		if len(a.Images) > 0 {
			artist.ImageURL = a.Images[0].URL
		}
		artists = append(artists, artist)
	}
	return artists
}
