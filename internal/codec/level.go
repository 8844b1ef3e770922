package codec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidLevel is returned for compression levels that cannot be parsed
// or that the selected algorithm cannot use.
var ErrInvalidLevel = errors.New("invalid compression level")

// Preset is a named compression strength.
type Preset uint8

const (
	PresetNone Preset = iota
	PresetLow
	PresetMedium
	PresetHigh
	PresetExtreme
)

var presetNames = map[Preset]string{
	PresetNone:    "none",
	PresetLow:     "low",
	PresetMedium:  "medium",
	PresetHigh:    "high",
	PresetExtreme: "extreme",
}

func (p Preset) String() string {
	if name, ok := presetNames[p]; ok {
		return name
	}
	return fmt.Sprintf("preset(%d)", uint8(p))
}

// budgetUnit scales a numeric level: n means n·1024 pixels per second.
const budgetUnit = 1024

// MaxBudget is the largest numeric level, about a billion pixels per second.
const MaxBudget = 1 << 20

// presetBudgets are pixel-per-second budgets, in budgetUnit, used when the
// budget algorithm is given a named preset.
var presetBudgets = map[Preset]int{
	PresetLow:     4096,
	PresetMedium:  2048,
	PresetHigh:    1024,
	PresetExtreme: 256,
}

// Level is either a named preset or a numeric pixel-per-second budget.
type Level struct {
	preset  Preset
	budget  int
	numeric bool
}

// PresetLevel returns the level for a named preset.
func PresetLevel(p Preset) Level {
	return Level{preset: p}
}

// BudgetLevel returns a numeric level of n·1024 pixels per second.
func BudgetLevel(n int) Level {
	return Level{budget: n, numeric: true}
}

// ParseLevel parses a preset name or a positive integer.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "none":
		return PresetLevel(PresetNone), nil
	case "low":
		return PresetLevel(PresetLow), nil
	case "medium", "":
		return PresetLevel(PresetMedium), nil
	case "high":
		return PresetLevel(PresetHigh), nil
	case "extreme", "trash-compactor":
		return PresetLevel(PresetExtreme), nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return Level{}, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	if n <= 0 || n > MaxBudget {
		return Level{}, fmt.Errorf("%w: budget must be between 1 and %d, got %d", ErrInvalidLevel, MaxBudget, n)
	}
	return BudgetLevel(n), nil
}

// IsNumeric reports whether the level is a pixel budget rather than a preset.
func (l Level) IsNumeric() bool { return l.numeric }

// Preset returns the named preset. Only meaningful when !IsNumeric().
func (l Level) Preset() Preset { return l.preset }

// PixelsPerFrame converts the level into a per-frame pixel budget for a
// stream running at fps. Zero means unlimited.
func (l Level) PixelsPerFrame(fps float64) (int, error) {
	if fps <= 0 {
		return 0, fmt.Errorf("%w: fps must be greater than 0, got %g", ErrInvalidLevel, fps)
	}

	perSecond := l.budget
	if !l.numeric {
		if l.preset == PresetNone {
			return 0, nil
		}
		perSecond = presetBudgets[l.preset]
	}

	k := int(float64(perSecond) * budgetUnit / fps)
	if k <= 0 {
		return 0, fmt.Errorf("%w: budget %d rounds to zero pixels per frame at %g fps", ErrInvalidLevel, perSecond, fps)
	}
	return k, nil
}

func (l Level) String() string {
	if l.numeric {
		return strconv.Itoa(l.budget)
	}
	return l.preset.String()
}
