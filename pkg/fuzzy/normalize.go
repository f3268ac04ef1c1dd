// Package fuzzy compares track titles and artist names across catalogs that spell them differently.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultMatchThreshold is the combined score above which two tracks are treated as the same recording
const DefaultMatchThreshold = 0.8

const (
	titleWeight  = 0.7
	artistWeight = 0.3
)

var (
	featRegex       = regexp.MustCompile(`(?i)\s*[\(\[]?\s*\b(?:feat\.?|ft\.?|featuring)\s+[^\)\]]*[\)\]]?`)
	bracketRegex    = regexp.MustCompile(`(?i)\s*[\(\[][^\)\]]*\b(?:remix|mix|edit|remaster(?:ed)?|deluxe|live|version|mono|stereo)\b[^\)\]]*[\)\]]`)
	dashSuffixRegex = regexp.MustCompile(`(?i)\s+-\s+.*\b(?:remix|edit|remaster(?:ed)?|live|version)\b.*$`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s&]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	artistSplit     = regexp.MustCompile(`(?i)\s*(?:,|;|\bx\b|\bfeat\.?|\bft\.?|\bfeaturing\b|\bwith\b)\s*`)
)

type Normalizer struct {
	threshold float64
}

func NewNormalizer() *Normalizer {
	return &Normalizer{threshold: DefaultMatchThreshold}
}

// WithThreshold returns a copy of the normalizer using a different match threshold.
func (n *Normalizer) WithThreshold(threshold float64) *Normalizer {
	return &Normalizer{threshold: threshold}
}

// NormalizeArtist keeps the primary credited artist, lower-cased and without accents.
func (n *Normalizer) NormalizeArtist(artist string) string {
	parts := artistSplit.Split(artist, 2)
	if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
		artist = parts[0]
	}

	artist = n.basicNormalize(artist)
	artist = strings.ReplaceAll(artist, " and ", " & ")
	if strings.HasPrefix(artist, "the ") {
		artist = strings.TrimPrefix(artist, "the ")
	}
	return artist
}

// NormalizeTitle strips featured artists and version qualifiers before the basic normalization.
func (n *Normalizer) NormalizeTitle(title string) string {
	title = featRegex.ReplaceAllString(title, "")
	title = bracketRegex.ReplaceAllString(title, "")
	title = dashSuffixRegex.ReplaceAllString(title, "")
	return n.basicNormalize(title)
}

func (n *Normalizer) basicNormalize(text string) string {
	text = norm.NFKD.String(text)

	var result strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			result.WriteRune(r)
		}
	}
	text = result.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	return strings.TrimSpace(strings.ToLower(text))
}

// CalculateSimilarity is the longest common subsequence ratio of two already normalized strings.
func (n *Normalizer) CalculateSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 || len(r2) == 0 {
		return 0.0
	}

	return float64(longestCommonSubsequence(r1, r2)) / float64(max(len(r1), len(r2)))
}

// Score weighs title and artist similarity of a candidate against the wanted track.
func (n *Normalizer) Score(wantTitle, wantArtist, gotTitle, gotArtist string) float64 {
	title := n.CalculateSimilarity(n.NormalizeTitle(wantTitle), n.NormalizeTitle(gotTitle))
	if wantArtist == "" {
		return title
	}
	artist := n.CalculateSimilarity(n.NormalizeArtist(wantArtist), n.NormalizeArtist(gotArtist))
	return titleWeight*title + artistWeight*artist
}

// Matches reports whether the candidate scores at or above the threshold.
func (n *Normalizer) Matches(wantTitle, wantArtist, gotTitle, gotArtist string) bool {
	return n.Score(wantTitle, wantArtist, gotTitle, gotArtist) >= n.threshold
}

func longestCommonSubsequence(s1, s2 []rune) int {
	prev := make([]int, len(s2)+1)
	cur := make([]int, len(s2)+1)

	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			if s1[i-1] == s2[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}

	return prev[len(s2)]
}
