package fuzzy

import (
	"testing"
)

// runStringTransformationTest is a helper to run tests for string transformation functions.
func runStringTransformationTest(t *testing.T, testName string,
	transformFunc func(string) string, testCases []struct {
		name     string
		input    string
		expected string
	}) {
	t.Helper()
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			result := transformFunc(tt.input)
			if result != tt.expected {
				t.Errorf("%s() = %q, want %q", testName, result, tt.expected)
			}
		})
	}
}

func TestNormalizer_NormalizeArtist(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Leading article dropped", "The Beatles", "beatles"},
		{"Featured artist dropped", "Daft Punk feat. Pharrell Williams", "daft punk"},
		{"Comma separated credits", "Calvin Harris, Dua Lipa", "calvin harris"},
		{"And becomes ampersand", "Simon and Garfunkel", "simon & garfunkel"},
		{"Punctuation", "P!nk", "p nk"},
		{"Accents", "Björk", "bjork"},
	}

	runStringTransformationTest(t, "NormalizeArtist", normalizer.NormalizeArtist, tests)
}

func TestNormalizer_NormalizeTitle(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Simple title", "Hey Jude", "hey jude"},
		{"Title with featuring", "Song Title (feat. Artist)", "song title"},
		{"Title with remix", "Song Title (Remix)", "song title"},
		{"Title with remaster year", "Song Title (Remastered 2009)", "song title"},
		{"Title with dash suffix", "Song Title - Radio Edit", "song title"},
		{"Title with punctuation", "Don't Stop Me Now!", "don t stop me now"},
		{"Everything at once", "Hey Jude (Remastered 2009) [feat. Orchestra] - Radio Edit", "hey jude"},
	}

	runStringTransformationTest(t, "NormalizeTitle", normalizer.NormalizeTitle, tests)
}

func TestNormalizer_basicNormalize(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Simple text", "Hello World", "hello world"},
		{"Text with punctuation", "Hello, World!", "hello world"},
		{"Text with accents", "Café", "cafe"},
		{"Ampersand kept", "Rock & Roll", "rock & roll"},
		{"Leading and trailing spaces", "  Hello    World  ", "hello world"},
	}

	runStringTransformationTest(t, "basicNormalize", normalizer.basicNormalize, tests)
}

func TestNormalizer_CalculateSimilarity(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name     string
		s1       string
		s2       string
		expected float64
		delta    float64
	}{
		{"Identical strings", "hello", "hello", 1.0, 0.0},
		{"Completely different strings", "hello", "world", 0.2, 0.01},
		{"Similar strings", "hello", "hallo", 0.8, 0.01},
		{"Empty strings", "", "", 1.0, 0.0},
		{"One empty string", "hello", "", 0.0, 0.0},
		{"Substring", "hello world", "hello", 0.45, 0.01},
		{"Multibyte runes", "añejo", "anejo", 0.8, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizer.CalculateSimilarity(tt.s1, tt.s2)
			if abs64(result-tt.expected) > tt.delta {
				t.Errorf("CalculateSimilarity() = %f, want %f (±%f)", result, tt.expected, tt.delta)
			}
		})
	}
}

func TestNormalizer_Matches(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name       string
		wantTitle  string
		wantArtist string
		gotTitle   string
		gotArtist  string
		expected   bool
	}{
		{"Same recording", "One More Time", "Daft Punk", "One More Time", "Daft Punk", true},
		{"Edit qualifier ignored", "One More Time", "Daft Punk", "One More Time (Radio Edit)", "Daft Punk", true},
		{"Featured credit ignored", "Get Lucky", "Daft Punk", "Get Lucky", "Daft Punk, Pharrell Williams", true},
		{"Different song by same artist", "One More Time", "Daft Punk", "Around the World", "Daft Punk", false},
		{"Title only", "Hey Jude", "", "Hey Jude", "The Beatles", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizer.Matches(tt.wantTitle, tt.wantArtist, tt.gotTitle, tt.gotArtist)
			if got != tt.expected {
				t.Errorf("Matches() = %v, want %v (score %f)", got, tt.expected,
					normalizer.Score(tt.wantTitle, tt.wantArtist, tt.gotTitle, tt.gotArtist))
			}
		})
	}
}

func TestNormalizer_WithThreshold(t *testing.T) {
	strict := NewNormalizer().WithThreshold(1.0)
	if strict.Matches("Hello", "Adele", "Hallo", "Adele") {
		t.Error("Expected strict threshold to reject near match")
	}
	if !NewNormalizer().WithThreshold(0.5).Matches("Hello", "Adele", "Hallo", "Adele") {
		t.Error("Expected loose threshold to accept near match")
	}
}

func BenchmarkNormalizer_NormalizeTitle(b *testing.B) {
	normalizer := NewNormalizer()
	title := "Hey Jude (Remastered 2009) [feat. Orchestra] - Radio Edit"

	b.ResetTimer()
	for range b.N {
		normalizer.NormalizeTitle(title)
	}
}

func BenchmarkNormalizer_Score(b *testing.B) {
	normalizer := NewNormalizer()

	b.ResetTimer()
	for range b.N {
		normalizer.Score("Hey Jude", "The Beatles", "Hey Jude - Remastered 2015", "The Beatles")
	}
}

// Helper function for floating point comparison.
func abs64(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
