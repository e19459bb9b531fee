// Package genre classifies tracks into the coarse genre taxonomy from
// free-text artist tags, with an artist-name fallback table.
package genre

import (
	"strings"
	"sync/atomic"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
)

// Classifier evaluates the active RuleTable. The table can be swapped while
// classification is running; each call sees one complete table.
type Classifier struct {
	table atomic.Pointer[RuleTable]
}

// NewClassifier builds a Classifier. A nil table selects DefaultRuleTable.
func NewClassifier(table *RuleTable) *Classifier {
	if table == nil {
		table = DefaultRuleTable()
	}
	c := &Classifier{}
	c.table.Store(table)
	return c
}

// Swap replaces the active table.
func (c *Classifier) Swap(table *RuleTable) {
	if table != nil {
		c.table.Store(table)
	}
}

// Table returns the active table.
func (c *Classifier) Table() *RuleTable {
	return c.table.Load()
}

// Classify returns the highest-priority genre any tag matches, or Default.
func (c *Classifier) Classify(tags []string) domain.Genre {
	if len(tags) == 0 {
		return domain.GenreDefault
	}

	lowered := make([]string, len(tags))
	for i, tag := range tags {
		lowered[i] = strings.ToLower(tag)
	}

	for _, rule := range c.table.Load().Rules {
		if anyContains(lowered, rule.Keywords) {
			return rule.Genre
		}
	}
	return domain.GenreDefault
}

// ClassifyArtist scans the artist fallback table top to bottom.
func (c *Classifier) ClassifyArtist(name string) domain.Genre {
	normalized := normalizeName(name)
	if normalized == "" {
		return domain.GenreDefault
	}

	for _, artist := range c.table.Load().Artists {
		if artist.matches(normalized) {
			return artist.Genre
		}
	}
	return domain.GenreDefault
}

func anyContains(tags []string, keywords []string) bool {
	for _, tag := range tags {
		for _, keyword := range keywords {
			if strings.Contains(tag, keyword) {
				return true
			}
		}
	}
	return false
}
