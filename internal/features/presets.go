package features

import "github.com/ewilliams-labs/soundstage/internal/core/domain"

var presets = map[domain.Genre]domain.AudioFeatures{
	domain.GenreRock: {
		Acousticness: 0.08, Danceability: 0.48, Energy: 0.88, Instrumentalness: 0.05,
		Key: 4, Liveness: 0.20, Loudness: -5.2, Mode: 1, Speechiness: 0.06, Tempo: 132, Valence: 0.52,
	},
	domain.GenrePop: {
		Acousticness: 0.15, Danceability: 0.72, Energy: 0.74, Instrumentalness: 0.01,
		Key: 1, Liveness: 0.13, Loudness: -5.5, Mode: 1, Speechiness: 0.07, Tempo: 118, Valence: 0.62,
	},
	domain.GenreClassic: {
		Acousticness: 0.90, Danceability: 0.28, Energy: 0.18, Instrumentalness: 0.85,
		Key: 2, Liveness: 0.11, Loudness: -19.5, Mode: 1, Speechiness: 0.04, Tempo: 92, Valence: 0.25,
	},
	domain.GenreRap: {
		Acousticness: 0.12, Danceability: 0.80, Energy: 0.68, Instrumentalness: 0.01,
		Key: 6, Liveness: 0.16, Loudness: -6.2, Mode: 0, Speechiness: 0.26, Tempo: 96, Valence: 0.48,
	},
	domain.GenreCountry: {
		Acousticness: 0.35, Danceability: 0.60, Energy: 0.62, Instrumentalness: 0.02,
		Key: 7, Liveness: 0.15, Loudness: -6.8, Mode: 1, Speechiness: 0.04, Tempo: 114, Valence: 0.60,
	},
	domain.GenreDefault: {
		Acousticness: 0.30, Danceability: 0.55, Energy: 0.55, Instrumentalness: 0.15,
		Key: 0, Liveness: 0.15, Loudness: -8.0, Mode: 1, Speechiness: 0.06, Tempo: 115, Valence: 0.50,
	},
}

// Preset returns the fixed vector for a genre. Unknown genres get Default.
func Preset(g domain.Genre) domain.AudioFeatures {
	if f, ok := presets[g]; ok {
		return f
	}
	return presets[domain.GenreDefault]
}
