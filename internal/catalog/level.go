package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Level grades a question's difficulty.
type Level string

const (
	LevelEasy   Level = "easy"
	LevelMedium Level = "medium"
	LevelHard   Level = "hard"
)

// ErrInvalidLevel indicates an unrecognized difficulty value.
var ErrInvalidLevel = errors.New("catalog: invalid level")

// ParseLevel accepts any casing of the three difficulty names.
func ParseLevel(rawInput string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(rawInput)) {
	case string(LevelEasy):
		return LevelEasy, nil
	case string(LevelMedium):
		return LevelMedium, nil
	case string(LevelHard):
		return LevelHard, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, rawInput)
	}
}

// Levels returns the difficulty values in display order.
func Levels() []Level {
	return []Level{LevelEasy, LevelMedium, LevelHard}
}

func (l Level) String() string {
	return string(l)
}
