package catalog

import (
	"encoding/json"
	"testing"

	"songswipe/internal/core"
)

func TestNormalizeDeezer(t *testing.T) {
	tests := []struct {
		name        string
		record      DeezerTrack
		wantOK      bool
		wantArtist  string
		wantAlbum   string
		wantCover   string
		wantPreview bool
		wantLink    string
	}{
		{
			name: "complete record",
			record: DeezerTrack{
				ID: 3135556, Title: "Harder, Better, Faster, Stronger", Link: "https://www.deezer.com/track/3135556",
				Preview: "https://cdns-preview.dzcdn.net/a.mp3",
				Artist:  &DeezerArtist{ID: 27, Name: "Daft Punk"},
				Album:   &DeezerAlbum{Title: "Discovery", CoverXL: "xl.jpg", CoverBig: "big.jpg"},
			},
			wantOK: true, wantArtist: "Daft Punk", wantAlbum: "Discovery", wantCover: "xl.jpg",
			wantPreview: true, wantLink: "https://www.deezer.com/track/3135556",
		},
		{
			name:   "missing optional fields use defaults",
			record: DeezerTrack{ID: 42, Title: "Untitled"},
			wantOK: true, wantArtist: UnknownArtist, wantAlbum: UnknownAlbum, wantCover: "",
			wantPreview: false, wantLink: "https://www.deezer.com/track/42",
		},
		{
			name: "cover falls back through resolutions",
			record: DeezerTrack{
				ID: 7, Title: "Song",
				Album: &DeezerAlbum{Title: "Album", CoverMedium: "medium.jpg"},
			},
			wantOK: true, wantArtist: UnknownArtist, wantAlbum: "Album", wantCover: "medium.jpg",
			wantLink: "https://www.deezer.com/track/7",
		},
		{
			name:   "missing id is dropped",
			record: DeezerTrack{Title: "No ID"},
			wantOK: false,
		},
		{
			name:   "missing title is dropped",
			record: DeezerTrack{ID: 9, Title: "  "},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track, ok := Normalize(tt.record)
			if ok != tt.wantOK {
				t.Fatalf("Normalize() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if track.ArtistName != tt.wantArtist {
				t.Errorf("ArtistName = %q, want %q", track.ArtistName, tt.wantArtist)
			}
			if track.AlbumName != tt.wantAlbum {
				t.Errorf("AlbumName = %q, want %q", track.AlbumName, tt.wantAlbum)
			}
			if track.Cover() != tt.wantCover {
				t.Errorf("Cover() = %q, want %q", track.Cover(), tt.wantCover)
			}
			if track.Playable() != tt.wantPreview {
				t.Errorf("Playable() = %v, want %v", track.Playable(), tt.wantPreview)
			}
			if track.ExternalURL != tt.wantLink {
				t.Errorf("ExternalURL = %q, want %q", track.ExternalURL, tt.wantLink)
			}
			if track.Provider != core.ProviderDeezer {
				t.Errorf("Provider = %q, want %q", track.Provider, core.ProviderDeezer)
			}
		})
	}
}

func TestNormalizeSpotify(t *testing.T) {
	track, ok := Normalize(SpotifyTrack{
		ID:          "4uLU6hMCjMI75M1A2tKUQC",
		Name:        "Get Lucky",
		Artists:     []string{"Daft Punk", "Pharrell Williams", ""},
		AlbumName:   "Random Access Memories",
		AlbumImages: []string{"640.jpg", "300.jpg"},
	})
	if !ok {
		t.Fatal("expected record to normalize")
	}
	if track.ArtistName != "Daft Punk, Pharrell Williams" {
		t.Errorf("ArtistName = %q", track.ArtistName)
	}
	if track.Cover() != "640.jpg" {
		t.Errorf("Cover() = %q, want widest image", track.Cover())
	}
	if track.PreviewURL != nil {
		t.Errorf("PreviewURL = %v, want nil", *track.PreviewURL)
	}
	if track.ExternalURL != "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC" {
		t.Errorf("ExternalURL = %q", track.ExternalURL)
	}
}

func TestNormalizeITunes(t *testing.T) {
	track, ok := Normalize(&ITunesTrack{
		TrackID:       1440818839,
		TrackName:     "One More Time",
		ArtistName:    "Daft Punk",
		ArtworkURL100: "https://is1-ssl.mzstatic.com/image/thumb/Music/100x100bb.jpg",
		PreviewURL:    "https://audio-ssl.itunes.apple.com/preview.m4a",
	})
	if !ok {
		t.Fatal("expected record to normalize")
	}
	if track.ID != "1440818839" {
		t.Errorf("ID = %q", track.ID)
	}
	if track.AlbumName != UnknownAlbum {
		t.Errorf("AlbumName = %q, want %q", track.AlbumName, UnknownAlbum)
	}
	if track.Cover() != "https://is1-ssl.mzstatic.com/image/thumb/Music/500x500bb.jpg" {
		t.Errorf("Cover() = %q", track.Cover())
	}
	if !track.Playable() {
		t.Error("expected track to be playable")
	}
	if track.ExternalURL != "https://music.apple.com/song/1440818839" {
		t.Errorf("ExternalURL = %q", track.ExternalURL)
	}
}

func TestNormalizeLastFMDecodesBothArtistShapes(t *testing.T) {
	payload := `[
		{"name":"Believe","artist":"Cher","url":"https://www.last.fm/music/Cher/_/Believe",
		 "image":[{"#text":"s.png","size":"small"},{"#text":"m.png","size":"medium"},{"#text":"l.png","size":"large"}]},
		{"name":"Strong Enough","mbid":"abc","artist":{"name":"Cher","mbid":"x"},"url":"https://www.last.fm/music/Cher/_/Strong+Enough",
		 "image":[{"#text":"s.png"},{"#text":"m.png"},{"#text":"l.png"},{"#text":"xl.png"}]},
		{"name":"","url":"https://www.last.fm/music/Nobody"}
	]`

	var records []LastFMTrack
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	tracks := NormalizeAll(records)
	if len(tracks) != 2 {
		t.Fatalf("NormalizeAll() returned %d tracks, want 2", len(tracks))
	}

	if tracks[0].ID != "https://www.last.fm/music/Cher/_/Believe" || tracks[0].Cover() != "l.png" {
		t.Errorf("first track = %+v", tracks[0])
	}
	if tracks[1].ID != "abc" || tracks[1].ArtistName != "Cher" || tracks[1].Cover() != "xl.png" {
		t.Errorf("second track = %+v", tracks[1])
	}
	for _, track := range tracks {
		if track.Playable() {
			t.Errorf("Last.fm track %q must not be playable", track.Title)
		}
	}
}

func TestNormalizeAllDropsInvalidRecords(t *testing.T) {
	records := []DeezerTrack{
		{ID: 1, Title: "A"},
		{ID: 0, Title: "B"},
		{ID: 3, Title: ""},
		{ID: 4, Title: "D"},
	}

	tracks := NormalizeAll(records)
	if len(tracks) != 2 {
		t.Fatalf("NormalizeAll() returned %d tracks, want 2", len(tracks))
	}
	if tracks[0].ID != "1" || tracks[1].ID != "4" {
		t.Errorf("NormalizeAll() kept %q and %q, want 1 and 4", tracks[0].ID, tracks[1].ID)
	}
}

func TestNormalizeDeezerArtist(t *testing.T) {
	artist, ok := NormalizeDeezerArtist(DeezerArtist{ID: 27, Name: "Daft Punk", PictureBig: "big.jpg", Picture: "small.jpg"})
	if !ok {
		t.Fatal("expected artist to normalize")
	}
	if artist.ID != "27" || artist.ImageURL != "big.jpg" {
		t.Errorf("artist = %+v", artist)
	}

	if _, ok := NormalizeDeezerArtist(DeezerArtist{Name: "No ID"}); ok {
		t.Error("artist without id should be dropped")
	}
}
