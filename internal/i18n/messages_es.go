package i18n

// spanishMessages contains all Spanish translations.
var spanishMessages = map[string]string{
	// Error messages
	"error.load_track":    "Error al cargar la canción. Por favor, inténtalo de nuevo.",
	"error.empty_set":     "No encontré canciones para tus artistas. Por favor, inténtalo de nuevo.",
	"error.no_playable":   "No encontré ninguna canción con vista previa. Por favor, inténtalo de nuevo.",
	"error.provider":      "El catálogo de música no responde ahora mismo. Por favor, inténtalo de nuevo.",
	"error.credential":    "Tu sesión de música ha caducado. Vuelve a iniciar sesión.",
	"error.generic":       "Algo salió mal. Por favor, inténtalo de nuevo.",
	"error.rate_limited":  "Ve un poco más despacio e inténtalo en un momento.",
	"error.seeds.missing": "Dime al menos un artista, por ejemplo /seeds Daft Punk",
	"error.seeds.unknown": "No encontré ningún artista llamado %s",
	"error.auth.state":    "El inicio de sesión falló: la solicitud no coincide. Empieza de nuevo.",

	// Status
	"status.loading":   "Cargando canción...",
	"status.no_track":  "Todavía no hay ninguna canción.",
	"status.logged_in": "Sesión iniciada. Las recomendaciones usan ahora tu historial.",

	// Format helpers for cards
	"format.track":   "🎵 %s\n👤 %s",
	"format.album":   "\n💿 %s",
	"format.preview": "\n▶️ %s",
	"format.url":     "\n🔗 %s",

	// Decisions
	"success.liked":         "❤️ Te gusta: %s - %s",
	"success.disliked":      "👎 Descartada: %s - %s",
	"success.seeds_updated": "Artistas semilla: %s",

	// Buttons
	"button.like":    "❤️ Me gusta",
	"button.dislike": "👎 No me gusta",
	"button.retry":   "Intentar de nuevo",

	// Callback answers
	"callback.busy":     "Espera, la tarjeta todavía se está moviendo.",
	"callback.expired":  "Esta tarjeta ya no está vigente.",
	"callback.received": "Recibido",

	// Bot
	"bot.welcome": "Desliza entre canciones: ❤️ para me gusta, 👎 para saltar. Usa /seeds <artista>, <artista> para orientar la selección.",
	"bot.help":    "/start muestra una canción\n/next la salta\n/seeds <artista>, <artista> fija tus artistas favoritos\n/clear los olvida",
}
