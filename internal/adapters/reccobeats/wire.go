package reccobeats

// trackSearchResponse is the body of GET /track?ids=...
type trackSearchResponse struct {
	Content []trackEntry `json:"content"`
}

type trackEntry struct {
	ID   string `json:"id"`
	Href string `json:"href"`
}

// audioFeaturesResponse is the body of GET /track/{id}/audio-features.
type audioFeaturesResponse struct {
	ID               string  `json:"id"`
	Href             string  `json:"href"`
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
