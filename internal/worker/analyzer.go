package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// rmsGain maps full-scale RMS onto the 0..1 energy range. Mastered music
// sits around a quarter of full scale.
const rmsGain = 3.0

// Analysis is what a preview clip tells us about a track.
type Analysis struct {
	Energy   float64
	Loudness float64
}

// AnalyzeFunc fetches and measures one preview clip.
type AnalyzeFunc func(ctx context.Context, url string) (Analysis, error)

var previewClient = &http.Client{Timeout: 15 * time.Second}

// AnalyzePreview decodes an MP3 preview and measures its RMS level.
func AnalyzePreview(ctx context.Context, url string) (Analysis, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Analysis{}, fmt.Errorf("preview request failed: %w", err)
	}

	// #nosec G107 -- URL comes from the playback service's track payload
	resp, err := previewClient.Do(req)
	if err != nil {
		return Analysis{}, fmt.Errorf("preview fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Analysis{}, fmt.Errorf("preview fetch status %d", resp.StatusCode)
	}

	return analyzeMP3(resp.Body)
}

func analyzeMP3(r io.Reader) (Analysis, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return Analysis{}, fmt.Errorf("preview decode failed: %w", err)
	}

	buf := make([]byte, 4096)
	var sumSquares float64
	var count float64

	for {
		n, err := decoder.Read(buf)
		for i := 0; i+1 < n; i += 2 {
			sample := float64(int16(buf[i]) | int16(buf[i+1])<<8)
			sumSquares += sample * sample
			count++
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Analysis{}, fmt.Errorf("preview read failed: %w", err)
		}
	}

	if count == 0 {
		return Analysis{}, fmt.Errorf("preview contains no samples")
	}

	return analysisFromRMS(math.Sqrt(sumSquares/count) / 32768.0), nil
}

// analysisFromRMS takes RMS as a fraction of full scale.
func analysisFromRMS(rms float64) Analysis {
	loudness := -60.0
	if rms > 0 {
		loudness = math.Max(-60, 20*math.Log10(rms))
	}
	return Analysis{
		Energy:   math.Max(0, math.Min(1, rms*rmsGain)),
		Loudness: loudness,
	}
}
