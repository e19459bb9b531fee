package environment

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
)

//go:embed default_profiles.yaml
var defaultProfilesYAML []byte

// Profile is everything the machine applies for one genre.
type Profile struct {
	Genre       domain.Genre    `yaml:"genre"`
	Scene       string          `yaml:"scene"`
	Skybox      string          `yaml:"skybox"`
	PostProcess string          `yaml:"post_process"`
	Anchors     []domain.Anchor `yaml:"anchors"`
}

// Profiles indexes profiles by genre. A missing genre falls back to Default.
type Profiles map[domain.Genre]Profile

// For returns the profile for g.
func (p Profiles) For(g domain.Genre) Profile {
	if profile, ok := p[g]; ok {
		return profile
	}
	return p[domain.GenreDefault]
}

// DefaultProfiles returns the profiles compiled into the binary.
func DefaultProfiles() Profiles {
	profiles, err := ParseProfiles(defaultProfilesYAML)
	if err != nil {
		panic(fmt.Sprintf("environment: embedded profiles are invalid: %v", err))
	}
	return profiles
}

// LoadProfiles reads profiles from a YAML file.
func LoadProfiles(path string) (Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("environment: failed to read profiles: %w", err)
	}
	return ParseProfiles(data)
}

// ParseProfiles decodes profiles. A Default profile is required.
func ParseProfiles(data []byte) (Profiles, error) {
	var doc struct {
		Profiles []Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("environment: failed to parse profiles: %w", err)
	}

	profiles := make(Profiles, len(doc.Profiles))
	for _, p := range doc.Profiles {
		if _, dup := profiles[p.Genre]; dup {
			return nil, fmt.Errorf("environment: duplicate profile for %q", p.Genre)
		}
		profiles[p.Genre] = p
	}
	if _, ok := profiles[domain.GenreDefault]; !ok {
		return nil, fmt.Errorf("environment: missing %q profile", domain.GenreDefault)
	}
	return profiles, nil
}
