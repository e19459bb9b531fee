package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGenre(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Genre
		wantErr bool
	}{
		{name: "lower case", input: "rock", want: GenreRock},
		{name: "mixed case and spaces", input: "  Country ", want: GenreCountry},
		{name: "default", input: "default", want: GenreDefault},
		{name: "unknown", input: "jazz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGenre(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenre_TextRoundTrip(t *testing.T) {
	payload, err := json.Marshal(map[string]Genre{"genre": GenreClassic})
	require.NoError(t, err)
	assert.JSONEq(t, `{"genre":"classic"}`, string(payload))

	var decoded map[string]Genre
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, GenreClassic, decoded["genre"])
}

func TestTrackState_Reset(t *testing.T) {
	s := TrackState{TrackID: "old", Elapsed: 30, AutoSkipped: true, PlaylistName: "Gym"}
	s.Reset("new", "artist")

	assert.Equal(t, TrackState{TrackID: "new", ArtistID: "artist"}, s)
	assert.True(t, s.Active())
	assert.False(t, TrackState{}.Active())
}
