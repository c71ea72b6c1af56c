package prompts

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrNameRequired    = errors.New("Please provide modifier name")
	ErrNameExists      = errors.New("Modifier Already Exists")
	ErrContentRequired = errors.New("Please provide a prompt content")

	ErrSequenceEmpty       = errors.New("Please provide a value")
	ErrSequenceNotNumber   = errors.New("Please provide a valid number")
	ErrSequenceTooLarge    = errors.New("The sequence should be less than or equal to number of modifiers")
	ErrSequenceNotPositive = errors.New("Please provide positive values")
	ErrSequenceDuplicate   = errors.New("Duplicate sequence values are not allowed.")
)

// DefaultDescription is used when a modifier is added without one.
const DefaultDescription = "New modifier description"

// SplitCore separates the core system prompt from the modifiers. Modifiers
// are ordered by sequence, then id.
func SplitCore(all []Prompt) (*Prompt, []Prompt) {
	var core *Prompt
	mods := make([]Prompt, 0, len(all))
	for i := range all {
		if all[i].IsCore() {
			p := all[i]
			core = &p
			continue
		}
		mods = append(mods, all[i])
	}
	sort.SliceStable(mods, func(i, j int) bool {
		if mods[i].Sequence != mods[j].Sequence {
			return mods[i].Sequence < mods[j].Sequence
		}
		return mods[i].ID < mods[j].ID
	})
	return core, mods
}

// CheckName requires a name not already used by another modifier. Names are
// compared trimmed and case-insensitively.
func CheckName(name string, existing []Prompt) error {
	n := strings.TrimSpace(name)
	if n == "" {
		return ErrNameRequired
	}
	for _, p := range existing {
		if strings.EqualFold(strings.TrimSpace(p.Name), n) {
			return ErrNameExists
		}
	}
	return nil
}

// NextSequence is the sequence a newly added modifier gets.
func NextSequence(modifiers []Prompt) int { return len(modifiers) + 1 }

// ParseSequence validates one value typed into the sequence editor.
func ParseSequence(value string, count int) (int, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, ErrSequenceEmpty
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, ErrSequenceNotNumber
	}
	if n > count {
		return n, ErrSequenceTooLarge
	}
	if n <= 0 {
		return n, ErrSequenceNotPositive
	}
	return n, nil
}

// Assignment sets one modifier's position.
type Assignment struct {
	ID       int `json:"prompt_id"`
	Sequence int `json:"sequence"`
}

// CheckSequences validates a full set of positions for count modifiers.
func CheckSequences(assignments []Assignment, count int) error {
	seen := make(map[int]bool, len(assignments))
	for _, a := range assignments {
		if _, err := ParseSequence(strconv.Itoa(a.Sequence), count); err != nil {
			return err
		}
		if seen[a.Sequence] {
			return ErrSequenceDuplicate
		}
		seen[a.Sequence] = true
	}
	return nil
}

// ToggleStatus flips active and inactive. Unknown values become active.
func ToggleStatus(s Status) Status {
	if s == StatusActive {
		return StatusInactive
	}
	return StatusActive
}
