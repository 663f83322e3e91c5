// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Level is a fencer's skill tier.
type Level string

// Known levels.
const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
)

// Levels lists the known levels in display order.
var Levels = []Level{LevelBeginner, LevelIntermediate, LevelAdvanced} //nolint:gochecknoglobals // fixed enum

// ParseLevel accepts a level name case-insensitively.
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels {
		if strings.EqualFold(strings.TrimSpace(s), string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown level %q", s)
}

// UnknownFencerName is shown for references to fencers that no longer exist.
const UnknownFencerName = "Unknown Fencer"

// Fencer is a registered participant.
type Fencer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Level Level  `json:"level"`
	Club  string `json:"club,omitempty"`

	// Tentative marks a record applied locally but not yet confirmed.
	Tentative bool `json:"tentative,omitempty"`
}

// Validate checks registration input.
func (f Fencer) Validate() error {
	switch {
	case strings.TrimSpace(f.Name) == "":
		return &ValidationError{Field: "name", Reason: "name is required"}
	case f.Age <= 0:
		return &ValidationError{Field: "age", Reason: "age must be positive"}
	}
	if _, err := ParseLevel(string(f.Level)); err != nil {
		return &ValidationError{Field: "level", Reason: err.Error()}
	}
	return nil
}

// FencerIndex maps fencer ids to fencers.
type FencerIndex map[int64]Fencer

// IndexFencers builds a lookup table.
func IndexFencers(fencers []Fencer) FencerIndex {
	idx := make(FencerIndex, len(fencers))
	for _, f := range fencers {
		idx[f.ID] = f
	}
	return idx
}

// Name returns the fencer's name or UnknownFencerName.
func (idx FencerIndex) Name(id int64) string {
	if f, ok := idx[id]; ok {
		return f.Name
	}
	return UnknownFencerName
}
