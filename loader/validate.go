package loader

import (
	"fmt"
	"math"
	"strings"

	"github.com/nathoo/worldweaver/engine/rules"
	"github.com/nathoo/worldweaver/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

// validate checks the pack for consistency. It returns the warnings, and
// a *ValidationError when anything is fatal.
func validate(pack *Pack) ([]string, error) {
	ve := &ValidationError{}

	if len(pack.Fragments) == 0 {
		ve.Errors = append(ve.Errors, "no fragments defined")
	}
	if pack.World.Title == "" {
		ve.Warnings = append(ve.Warnings, "world has no title")
	}

	ids := map[string]bool{}
	cells := map[types.Position]string{}
	for _, f := range pack.Fragments {
		if ids[f.ID] {
			ve.Errors = append(ve.Errors, fmt.Sprintf("duplicate fragment ID %q", f.ID))
		}
		ids[f.ID] = true

		switch {
		case math.IsNaN(f.Weight) || math.IsInf(f.Weight, 0):
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"fragment %q has non-finite weight %v", f.ID, f.Weight))
		case f.Weight < 0:
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"fragment %q has negative weight %v", f.ID, f.Weight))
		}
		if f.Position != nil {
			if other, taken := cells[*f.Position]; taken {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"fragments %q and %q share position (%d, %d)", other, f.ID, f.Position.X, f.Position.Y))
			} else {
				cells[*f.Position] = f.ID
			}
		}

		if f.TextTemplate == "" {
			ve.Warnings = append(ve.Warnings, fmt.Sprintf("fragment %q has no text", f.ID))
		}
		for _, op := range rules.UnknownOperators(f.Requires) {
			ve.Warnings = append(ve.Warnings, fmt.Sprintf(
				"fragment %q uses unknown operator %q; it is ignored", f.ID, op))
		}
	}

	report := Analyze(pack.Fragments)
	start := pack.World.Start
	if start != "" {
		if lf, ok := report.Locations[start]; !ok || len(lf.RequiredBy) == 0 {
			ve.Warnings = append(ve.Warnings, fmt.Sprintf(
				"start location %q has no fragment", start))
		}
	}
	for _, v := range report.MissingSetters {
		if v == "location" {
			continue
		}
		ve.Warnings = append(ve.Warnings, fmt.Sprintf(
			"variable %q is required but no choice sets it", v))
	}
	for _, loc := range report.Orphaned {
		if loc == start {
			continue
		}
		ve.Warnings = append(ve.Warnings, fmt.Sprintf(
			"location %q is required but no choice leads there", loc))
	}

	ve.Warnings = append(ve.Warnings, pack.Warnings...)
	if len(ve.Errors) > 0 {
		return ve.Warnings, ve
	}
	return ve.Warnings, nil
}
