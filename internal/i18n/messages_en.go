package i18n

// englishMessages contains all English translations.
var englishMessages = map[string]string{
	// Error messages
	"error.load_track":    "Error loading song. Please try again.",
	"error.empty_set":     "Couldn't find songs for your artists. Please try again.",
	"error.no_playable":   "Couldn't find a song with a preview. Please try again.",
	"error.provider":      "The music catalog is not reachable right now. Please try again.",
	"error.credential":    "Your music account session expired. Please log in again.",
	"error.generic":       "Something went wrong. Please try again.",
	"error.rate_limited":  "Slow down a little and try again in a moment.",
	"error.seeds.missing": "Tell me at least one artist, e.g. /seeds Daft Punk",
	"error.seeds.unknown": "Couldn't find an artist called %s",
	"error.auth.state":    "Login failed: the request did not match. Please start again.",

	// Status
	"status.loading":   "Loading song...",
	"status.no_track":  "No song to show yet.",
	"status.logged_in": "Logged in. Recommendations now use your listening history.",

	// Format helpers for cards
	"format.track":   "🎵 %s\n👤 %s",
	"format.album":   "\n💿 %s",
	"format.preview": "\n▶️ %s",
	"format.url":     "\n🔗 %s",

	// Decisions
	"success.liked":         "❤️ Liked: %s - %s",
	"success.disliked":      "👎 Skipped: %s - %s",
	"success.seeds_updated": "Seed artists: %s",

	// Buttons
	"button.like":    "❤️ Like",
	"button.dislike": "👎 Dislike",
	"button.retry":   "Try Again",

	// Callback answers
	"callback.busy":     "Hold on, the card is still moving.",
	"callback.expired":  "This card is no longer current.",
	"callback.received": "Got it",

	// Bot
	"bot.welcome": "Swipe through songs: ❤️ to like, 👎 to skip. Use /seeds <artist>, <artist> to steer the picks.",
	"bot.help":    "/start shows a song\n/next skips it\n/seeds <artist>, <artist> sets your favourite artists\n/clear forgets them",
}
