// Package catalog maps heterogeneous provider payloads to core.Track and hosts the
// HTTP catalog clients that need no SDK.
package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"songswipe/internal/core"
)

const (
	// UnknownArtist replaces a missing artist name
	UnknownArtist = "Unknown Artist"
	// UnknownAlbum replaces a missing album title
	UnknownAlbum = "Unknown Album"

	iTunesArtworkSize = "500x500bb"
)

// Record is one raw provider payload. The set of implementations is closed.
type Record interface {
	Provider() core.ProviderKind
	isRecord()
}

// DeezerTrack is a track object of the Deezer public API.
type DeezerTrack struct {
	ID      int64         `json:"id"`
	Title   string        `json:"title"`
	Link    string        `json:"link"`
	Preview string        `json:"preview"`
	Artist  *DeezerArtist `json:"artist"`
	Album   *DeezerAlbum  `json:"album"`
}

type DeezerArtist struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	PictureMedium string `json:"picture_medium"`
	PictureBig    string `json:"picture_big"`
	PictureXL     string `json:"picture_xl"`
}

type DeezerAlbum struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Cover       string `json:"cover"`
	CoverMedium string `json:"cover_medium"`
	CoverBig    string `json:"cover_big"`
	CoverXL     string `json:"cover_xl"`
}

// SpotifyTrack is the subset of a Spotify track object the pipeline consumes.
type SpotifyTrack struct {
	ID          string
	Name        string
	Artists     []string
	AlbumName   string
	AlbumImages []string // widest first, as returned by the API
	PreviewURL  string
	ExternalURL string
}

// ITunesTrack is a result of the iTunes Search API.
type ITunesTrack struct {
	Kind           string `json:"kind"`
	TrackID        int64  `json:"trackId"`
	TrackName      string `json:"trackName"`
	ArtistName     string `json:"artistName"`
	CollectionName string `json:"collectionName"`
	ArtworkURL100  string `json:"artworkUrl100"`
	ArtworkURL60   string `json:"artworkUrl60"`
	PreviewURL     string `json:"previewUrl"`
	TrackViewURL   string `json:"trackViewUrl"`
}

// LastFMTrack is a track object of the Last.fm API. Last.fm never serves audio.
type LastFMTrack struct {
	Name   string        `json:"name"`
	MBID   string        `json:"mbid"`
	URL    string        `json:"url"`
	Artist LastFMName    `json:"artist"`
	Album  LastFMName    `json:"album"`
	Image  []LastFMImage `json:"image"`
}

type LastFMImage struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

// LastFMName accepts both the plain string and the {"name": ...} object forms Last.fm uses.
type LastFMName string

func (n *LastFMName) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = LastFMName(s)
		return nil
	}

	var obj struct {
		Name  string `json:"name"`
		Title string `json:"title"`
		Text  string `json:"#text"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("lastfm name: %w", err)
	}
	*n = LastFMName(firstNonEmpty(obj.Name, obj.Title, obj.Text))
	return nil
}

func (DeezerTrack) Provider() core.ProviderKind  { return core.ProviderDeezer }
func (SpotifyTrack) Provider() core.ProviderKind { return core.ProviderSpotify }
func (ITunesTrack) Provider() core.ProviderKind  { return core.ProviderITunes }
func (LastFMTrack) Provider() core.ProviderKind  { return core.ProviderLastFM }

func (DeezerTrack) isRecord()  {}
func (SpotifyTrack) isRecord() {}
func (ITunesTrack) isRecord()  {}
func (LastFMTrack) isRecord()  {}

// Normalize maps one record to a Track. ok is false when the record lacks an id or a title.
func Normalize(rec Record) (track core.Track, ok bool) {
	switch r := rec.(type) {
	case DeezerTrack:
		return normalizeDeezer(r)
	case *DeezerTrack:
		return normalizeDeezer(*r)
	case SpotifyTrack:
		return normalizeSpotify(r)
	case *SpotifyTrack:
		return normalizeSpotify(*r)
	case ITunesTrack:
		return normalizeITunes(r)
	case *ITunesTrack:
		return normalizeITunes(*r)
	case LastFMTrack:
		return normalizeLastFM(r)
	case *LastFMTrack:
		return normalizeLastFM(*r)
	default:
		return core.Track{}, false
	}
}

// NormalizeAll normalizes a batch, silently dropping records without an id or a title.
func NormalizeAll[R Record](records []R) []core.Track {
	tracks := make([]core.Track, 0, len(records))
	for _, rec := range records {
		if track, ok := Normalize(rec); ok {
			tracks = append(tracks, track)
		}
	}
	return tracks
}

func normalizeDeezer(r DeezerTrack) (core.Track, bool) {
	if r.ID == 0 || strings.TrimSpace(r.Title) == "" {
		return core.Track{}, false
	}

	id := strconv.FormatInt(r.ID, 10)
	track := core.Track{
		ID:          id,
		Title:       r.Title,
		ArtistName:  UnknownArtist,
		AlbumName:   UnknownAlbum,
		PreviewURL:  optional(r.Preview),
		ExternalURL: firstNonEmpty(r.Link, "https://www.deezer.com/track/"+id),
		Provider:    core.ProviderDeezer,
	}
	if r.Artist != nil && r.Artist.Name != "" {
		track.ArtistName = r.Artist.Name
	}
	if r.Album != nil {
		if r.Album.Title != "" {
			track.AlbumName = r.Album.Title
		}
		track.CoverImageURL = optional(firstNonEmpty(r.Album.CoverXL, r.Album.CoverBig, r.Album.CoverMedium))
	}
	return track, true
}

func normalizeSpotify(r SpotifyTrack) (core.Track, bool) {
	if r.ID == "" || strings.TrimSpace(r.Name) == "" {
		return core.Track{}, false
	}

	artists := make([]string, 0, len(r.Artists))
	for _, a := range r.Artists {
		if a != "" {
			artists = append(artists, a)
		}
	}

	track := core.Track{
		ID:          r.ID,
		Title:       r.Name,
		ArtistName:  UnknownArtist,
		AlbumName:   firstNonEmpty(r.AlbumName, UnknownAlbum),
		PreviewURL:  optional(r.PreviewURL),
		ExternalURL: firstNonEmpty(r.ExternalURL, "https://open.spotify.com/track/"+r.ID),
		Provider:    core.ProviderSpotify,
	}
	if len(artists) > 0 {
		track.ArtistName = strings.Join(artists, ", ")
	}
	if len(r.AlbumImages) > 0 {
		track.CoverImageURL = optional(r.AlbumImages[0])
	}
	return track, true
}

func normalizeITunes(r ITunesTrack) (core.Track, bool) {
	if r.TrackID == 0 || strings.TrimSpace(r.TrackName) == "" {
		return core.Track{}, false
	}

	id := strconv.FormatInt(r.TrackID, 10)
	artwork := r.ArtworkURL100
	if artwork != "" {
		artwork = strings.Replace(artwork, "100x100bb", iTunesArtworkSize, 1)
	} else {
		artwork = r.ArtworkURL60
	}

	return core.Track{
		ID:            id,
		Title:         r.TrackName,
		ArtistName:    firstNonEmpty(r.ArtistName, UnknownArtist),
		AlbumName:     firstNonEmpty(r.CollectionName, UnknownAlbum),
		CoverImageURL: optional(artwork),
		PreviewURL:    optional(r.PreviewURL),
		ExternalURL:   firstNonEmpty(r.TrackViewURL, "https://music.apple.com/song/"+id),
		Provider:      core.ProviderITunes,
	}, true
}

func normalizeLastFM(r LastFMTrack) (core.Track, bool) {
	id := firstNonEmpty(r.MBID, r.URL)
	if id == "" || strings.TrimSpace(r.Name) == "" {
		return core.Track{}, false
	}

	var large, extraLarge string
	if len(r.Image) > 3 {
		extraLarge = r.Image[3].URL
	}
	if len(r.Image) > 2 {
		large = r.Image[2].URL
	}

	return core.Track{
		ID:            id,
		Title:         r.Name,
		ArtistName:    firstNonEmpty(string(r.Artist), UnknownArtist),
		AlbumName:     firstNonEmpty(string(r.Album), UnknownAlbum),
		CoverImageURL: optional(firstNonEmpty(extraLarge, large)),
		ExternalURL:   r.URL,
		Provider:      core.ProviderLastFM,
	}, true
}

// NormalizeDeezerArtist maps a Deezer artist to a seed Artist.
func NormalizeDeezerArtist(a DeezerArtist) (core.Artist, bool) {
	if a.ID == 0 || a.Name == "" {
		return core.Artist{}, false
	}
	return core.Artist{
		ID:          strconv.FormatInt(a.ID, 10),
		DisplayName: a.Name,
		ImageURL:    firstNonEmpty(a.PictureXL, a.PictureBig, a.PictureMedium, a.Picture),
	}, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
