package domain

// FeatureSource records where a feature vector came from.
type FeatureSource string

const (
	SourceCache   FeatureSource = "cache"
	SourceStore   FeatureSource = "store"
	SourceNetwork FeatureSource = "network"
	SourcePreset  FeatureSource = "preset"
	SourcePreview FeatureSource = "preview"
)

// AudioFeatures is the eleven-field descriptor of a track's sonic character.
// Values are copied, never mutated in place.
type AudioFeatures struct {
	TrackID          string  `json:"track_id"`
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Key              int     `json:"key"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Tempo            float64 `json:"tempo"`
	Valence          float64 `json:"valence"`
}

// WithTrackID returns a copy of f bound to trackID.
func (f AudioFeatures) WithTrackID(trackID string) AudioFeatures {
	f.TrackID = trackID
	return f
}
