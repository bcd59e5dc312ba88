// Package resolve maps item names typed at the console to inventory ids.
package resolve

import (
	"fmt"
	"strings"

	"github.com/nathoo/worldweaver/types"
)

// AmbiguityError indicates multiple items matched a name.
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("which %s? (%s)", e.Name, strings.Join(e.Candidates, ", "))
}

func (e *AmbiguityError) Unwrap() error { return types.ErrInvalidArgument }

// NotFoundError indicates no carried item matched a name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("you aren't carrying %q", e.Name)
}

func (e *NotFoundError) Unwrap() error { return types.ErrInvalidArgument }

// Item resolves name against the carried items. An exact id wins;
// otherwise the display name is matched whole or by any one of its words,
// and "rusty key" also matches the id "rusty_key".
func Item(items []types.ItemState, name string) (string, error) {
	nameLower := strings.ToLower(strings.TrimSpace(name))
	for _, it := range items {
		if it.ID == name {
			return it.ID, nil
		}
	}

	var matches []string
	for _, it := range items {
		if matchesName(it, nameLower) {
			matches = append(matches, it.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Name: name}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguityError{Name: name, Candidates: matches}
	}
}

func matchesName(it types.ItemState, nameLower string) bool {
	if it.Name != "" {
		itemName := strings.ToLower(it.Name)
		if itemName == nameLower {
			return true
		}
		// "key" matches "rusty key".
		for _, word := range strings.Fields(itemName) {
			if word == nameLower {
				return true
			}
		}
	}
	idLower := strings.ToLower(it.ID)
	return idLower == nameLower || strings.ReplaceAll(nameLower, " ", "_") == idLower
}
