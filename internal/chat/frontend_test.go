package chat

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"songswipe/internal/core"
	"songswipe/internal/i18n"
)

type stubArtists struct {
	known map[string]core.Artist
	err   error
}

func (s stubArtists) SearchArtists(_ context.Context, name string, _ int) ([]core.Artist, error) {
	if s.err != nil {
		return nil, s.err
	}
	if a, ok := s.known[strings.ToLower(name)]; ok {
		return []core.Artist{a}, nil
	}
	return nil, nil
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want Command
		ok   bool
	}{
		{"/start", Command{Name: "start"}, true},
		{"/seeds Daft Punk, Justice", Command{Name: "seeds", Args: "Daft Punk, Justice"}, true},
		{"/Seeds@swipe_bot  Muse ", Command{Name: "seeds", Args: "Muse"}, true},
		{"hello", Command{}, false},
		{"/", Command{}, false},
		{"/@bot", Command{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseCommand(tt.text)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseCommand(%q) = %+v, %v; want %+v, %v", tt.text, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSplitNames(t *testing.T) {
	got := SplitNames(" Daft Punk ,Justice;\nMuse,, ")
	want := []string{"Daft Punk", "Justice", "Muse"}
	if !slices.Equal(got, want) {
		t.Errorf("SplitNames = %q, want %q", got, want)
	}
}

func TestResolveArtists(t *testing.T) {
	searcher := stubArtists{known: map[string]core.Artist{
		"boywithuke": {ID: "1", DisplayName: "BoyWithUke"},
		"muse":       {ID: "2", DisplayName: "Muse"},
	}}

	artists, err := ResolveArtists(context.Background(), searcher, []string{"BoyWithUke", " ", "Muse"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ArtistNames(artists); got != "BoyWithUke, Muse" {
		t.Errorf("resolved %q", got)
	}

	_, err = ResolveArtists(context.Background(), searcher, []string{"Muse", "Nobody"})
	var unknown *UnknownArtistError
	if !errors.As(err, &unknown) || unknown.Name != "Nobody" {
		t.Errorf("expected unknown artist Nobody, got %v", err)
	}

	_, err = ResolveArtists(context.Background(), nil, []string{"Muse"})
	if !errors.As(err, &unknown) {
		t.Errorf("without a searcher every name is unknown, got %v", err)
	}

	failing := stubArtists{err: core.ErrProviderUnavailable}
	_, err = ResolveArtists(context.Background(), failing, []string{"Muse"})
	if !errors.Is(err, core.ErrProviderUnavailable) || errors.As(err, &unknown) {
		t.Errorf("provider failure should be passed through, got %v", err)
	}
}

func TestCardText(t *testing.T) {
	l := i18n.NewLocalizer(i18n.DefaultLanguage)

	text := CardText(l, core.Track{Title: "Loner", ArtistName: "BoyWithUke"})
	if text != "🎵 Loner\n👤 BoyWithUke" {
		t.Errorf("bare card = %q", text)
	}

	preview := "https://cdn.example/p.mp3"
	text = CardText(l, core.Track{
		Title:       "Loner",
		ArtistName:  "BoyWithUke",
		AlbumName:   "Lucid Dreams",
		PreviewURL:  &preview,
		ExternalURL: "https://open.spotify.com/track/x",
	})
	want := "🎵 Loner\n👤 BoyWithUke\n💿 Lucid Dreams\n▶️ https://cdn.example/p.mp3\n🔗 https://open.spotify.com/track/x"
	if text != want {
		t.Errorf("full card = %q, want %q", text, want)
	}
}
