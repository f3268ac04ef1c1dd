// Package chat holds what the chat frontends share: command parsing, seed resolution and card text.
package chat

import (
	"context"
	"fmt"
	"strings"

	"songswipe/internal/core"
	"songswipe/internal/i18n"
)

// Frontend is a chat integration that presents swipe cards.
type Frontend interface {
	// Start connects to the chat service
	Start(ctx context.Context) error

	// Run processes updates until ctx is done
	Run(ctx context.Context) error
}

// Command is a parsed "/name args" message.
type Command struct {
	Name string
	Args string
}

// ParseCommand splits a slash command. A bot mention suffix ("/seeds@my_bot") is dropped.
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return Command{}, false
	}

	name, args, _ := strings.Cut(text[1:], " ")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}, true
}

// SplitNames splits a comma or newline separated artist list.
func SplitNames(args string) []string {
	fields := strings.FieldsFunc(args, func(r rune) bool { return r == ',' || r == '\n' || r == ';' })
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			names = append(names, f)
		}
	}
	return names
}

// UnknownArtistError reports a seed name the catalog has no artist for.
type UnknownArtistError struct {
	Name string
}

func (e *UnknownArtistError) Error() string {
	return fmt.Sprintf("no artist named %q", e.Name)
}

// ResolveArtists looks up each name and keeps the best match.
func ResolveArtists(ctx context.Context, searcher core.ArtistSearcher, names []string) ([]core.Artist, error) {
	artists := make([]core.Artist, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if searcher == nil {
			return nil, &UnknownArtistError{Name: name}
		}
		found, err := searcher.SearchArtists(ctx, name, 1)
		if err != nil {
			return nil, fmt.Errorf("artist lookup %q: %w", name, err)
		}
		if len(found) == 0 {
			return nil, &UnknownArtistError{Name: name}
		}
		artists = append(artists, found[0])
	}
	return artists, nil
}

// ArtistNames joins display names for confirmations.
func ArtistNames(artists []core.Artist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.DisplayName)
	}
	return strings.Join(names, ", ")
}

// CardText renders a track the way chat cards show it.
func CardText(l *i18n.Localizer, t core.Track) string {
	var b strings.Builder
	b.WriteString(l.T("format.track", t.Title, t.ArtistName))
	if t.AlbumName != "" {
		b.WriteString(l.T("format.album", t.AlbumName))
	}
	if t.Playable() {
		b.WriteString(l.T("format.preview", t.Preview()))
	}
	if t.ExternalURL != "" {
		b.WriteString(l.T("format.url", t.ExternalURL))
	}
	return b.String()
}
