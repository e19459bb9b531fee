package genre

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// Rule maps a genre to the keyword substrings that mark it present.
type Rule struct {
	Genre    domain.Genre `yaml:"genre"`
	Keywords []string     `yaml:"keywords"`
}

// ArtistRule is one entry of the artist-name fallback table. Match is
// compared on whole words; Exact requires the full normalised name.
type ArtistRule struct {
	Match string       `yaml:"match"`
	Genre domain.Genre `yaml:"genre"`
	Exact bool         `yaml:"exact,omitempty"`
}

func (a ArtistRule) matches(normalized string) bool {
	if a.Exact {
		return normalized == a.Match
	}
	return strings.Contains(" "+normalized+" ", " "+a.Match+" ")
}

// RuleTable is the classification data. Rules are kept in
// domain.ClassificationOrder; Artists keep file order.
type RuleTable struct {
	Rules   []Rule       `yaml:"rules"`
	Artists []ArtistRule `yaml:"artists"`
}

// DefaultRuleTable returns the table compiled into the binary.
func DefaultRuleTable() *RuleTable {
	table, err := ParseRuleTable(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("genre: embedded rule table is invalid: %v", err))
	}
	return table
}

// LoadRuleTable reads a YAML rule table from disk.
func LoadRuleTable(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genre: failed to read rule table: %w", err)
	}
	return ParseRuleTable(data)
}

// ParseRuleTable decodes and validates a YAML rule table.
func ParseRuleTable(data []byte) (*RuleTable, error) {
	var raw RuleTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("genre: failed to parse rule table: %w", err)
	}

	byGenre := make(map[domain.Genre][]string, len(raw.Rules))
	for _, rule := range raw.Rules {
		if rule.Genre == domain.GenreDefault {
			return nil, fmt.Errorf("genre: rule for %q is not allowed", rule.Genre)
		}
		if _, dup := byGenre[rule.Genre]; dup {
			return nil, fmt.Errorf("genre: duplicate rule for %q", rule.Genre)
		}
		byGenre[rule.Genre] = lowerAll(rule.Keywords)
	}

	table := &RuleTable{}
	for _, g := range domain.ClassificationOrder {
		if keywords, ok := byGenre[g]; ok {
			table.Rules = append(table.Rules, Rule{Genre: g, Keywords: keywords})
		}
	}

	for _, artist := range raw.Artists {
		match := normalizeName(artist.Match)
		if match == "" {
			return nil, fmt.Errorf("genre: artist rule with empty match")
		}
		table.Artists = append(table.Artists, ArtistRule{Match: match, Genre: artist.Genre, Exact: artist.Exact})
	}

	return table, nil
}

func lowerAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}
