// Package types defines the shared data structures for the WorldWeaver runtime.
// This package contains only type definitions: no logic, no methods.
package types

import (
	"errors"
	"time"
)

// ErrInvalidArgument marks calls that can never succeed as made: an unknown
// direction name, a negative quantity, a fragment id the world does not know.
// Evaluation never returns it; unsatisfiable requirements are just false.
var ErrInvalidArgument = errors.New("invalid argument")

// Intent is the parsed representation of a console command.
type Intent struct {
	Verb   string
	Object string // optional
	Target string // optional
}

// ValueKind tags the dynamic type held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

// Value is a dynamically typed scalar or container read from a world
// variable, an item/relationship attribute, or a requirement literal.
// Every integer and float width collapses to Num.
type Value struct {
	Kind ValueKind
	Bool bool
	Num  float64
	Str  string
	Raw  any // the original Go value, kept for lists and maps
}

// Op is a comparison operator inside a requirement operator-object.
type Op string

const (
	OpGte Op = "gte"
	OpGt  Op = "gt"
	OpLte Op = "lte"
	OpLt  Op = "lt"
	OpEq  Op = "eq"
	OpNe  Op = "ne"
)

// Comparison is one operator/target pair from an operator-object.
type Comparison struct {
	Op     Op
	Target Value
}

// Test is the right-hand side of a requirement entry. When Operator is
// false the test is the literal form; otherwise every Comparison must hold.
type Test struct {
	Operator bool
	Literal  Value
	Ops      []Comparison
	Unknown  []string // operator names that were present but not understood
}

// ClauseKind classifies a requirement key.
type ClauseKind int

const (
	ClauseVariable ClauseKind = iota
	ClauseLocation
	ClauseItem
	ClauseRelationship
	ClauseEnvironment
)

// Clause is one decoded entry of a Requirement.
type Clause struct {
	Key     string
	Kind    ClauseKind
	ItemID  string // ClauseItem
	EntityA string // ClauseRelationship
	EntityB string // ClauseRelationship
	Test    Test   // ClauseVariable, ClauseLocation, and literal namespaced entries
	Attrs   map[string]Test
}

// Requirement is a conjunction of clauses. An empty requirement is always
// satisfied. Raw keeps the authored mapping for persistence and display.
type Requirement struct {
	Clauses []Clause
	Raw     map[string]any
}

// SetOp is a single variable mutation carried by a choice.
type SetOp struct {
	Key     string
	Delta   bool    // true for {inc, dec} forms
	Amount  float64 // inc - dec when Delta
	Literal any     // assigned value when !Delta
}

// Choice is a player-facing option attached to a fragment.
type Choice struct {
	Label string
	Set   []SetOp
	Raw   map[string]any
}

// Position is an integer grid coordinate. North is y-1.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Direction is one of the eight compass moves on the layout grid.
type Direction struct {
	Name   string
	DX     int
	DY     int
	Symbol string
}

// Fragment is an authored narrative unit (a storylet).
type Fragment struct {
	ID           string
	Title        string
	TextTemplate string
	Requires     Requirement
	Choices      []Choice
	Weight       float64
	Position     *Position
}

// WorldDef carries pack-level metadata.
type WorldDef struct {
	Title   string
	Author  string
	Version string
	Intro   string
	Start   string // initial value of the "location" variable
}

// ItemState is a single inventory entry.
type ItemState struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Description  string         `json:"description,omitempty" yaml:"description,omitempty"`
	Quantity     int            `json:"quantity" yaml:"quantity"`
	Condition    string         `json:"condition" yaml:"condition"`
	Properties   map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
	Location     string         `json:"location,omitempty" yaml:"location,omitempty"`
	LastUsed     *time.Time     `json:"last_used,omitempty" yaml:"last_used,omitempty"`
	DiscoveredAt time.Time      `json:"discovered_at" yaml:"discovered_at"`
}

// RelationshipState is the symmetric relationship between two entities.
// EntityA is always the lexicographically smaller id.
type RelationshipState struct {
	EntityA          string     `json:"entity_a" yaml:"entity_a"`
	EntityB          string     `json:"entity_b" yaml:"entity_b"`
	Trust            float64    `json:"trust" yaml:"trust"`
	Fear             float64    `json:"fear" yaml:"fear"`
	Respect          float64    `json:"respect" yaml:"respect"`
	Attraction       float64    `json:"attraction" yaml:"attraction"`
	Familiarity      float64    `json:"familiarity" yaml:"familiarity"`
	LastInteraction  *time.Time `json:"last_interaction,omitempty" yaml:"last_interaction,omitempty"`
	InteractionCount int        `json:"interaction_count" yaml:"interaction_count"`
	Memories         []string   `json:"memories" yaml:"memories"`
}

// Environment is the ambient world condition record.
type Environment struct {
	TimeOfDay   string `json:"time_of_day" yaml:"time_of_day"`
	Weather     string `json:"weather" yaml:"weather"`
	Season      string `json:"season" yaml:"season"`
	Temperature int    `json:"temperature" yaml:"temperature"`
	DangerLevel int    `json:"danger_level" yaml:"danger_level"`
	NoiseLevel  int    `json:"noise_level" yaml:"noise_level"`
	Lighting    string `json:"lighting" yaml:"lighting"`
	AirQuality  string `json:"air_quality" yaml:"air_quality"`
}

// ChangeType classifies a Change.
type ChangeType string

const (
	ChangeSet          ChangeType = "set"
	ChangeIncrement    ChangeType = "increment"
	ChangeDecrement    ChangeType = "decrement"
	ChangeItemAdd      ChangeType = "item_add"
	ChangeItemRemove   ChangeType = "item_remove"
	ChangeItemModify   ChangeType = "item_modify"
	ChangeRelationship ChangeType = "relationship_change"
	ChangeEnvironment  ChangeType = "environment_change"
)

// Change is one entry of the append-only change history.
type Change struct {
	ID         string         `json:"id" yaml:"id"`
	Timestamp  time.Time      `json:"timestamp" yaml:"timestamp"`
	Type       ChangeType     `json:"type" yaml:"type"`
	Variable   string         `json:"variable" yaml:"variable"`
	OldValue   any            `json:"old_value" yaml:"old_value"`
	NewValue   any            `json:"new_value" yaml:"new_value"`
	Context    map[string]any `json:"context,omitempty" yaml:"context,omitempty"`
	FragmentID string         `json:"fragment_id,omitempty" yaml:"fragment_id,omitempty"`
}

// Snapshot is the exportable form of a session's world state.
type Snapshot struct {
	SessionID     string                       `json:"session_id" yaml:"session_id"`
	Variables     map[string]any               `json:"variables" yaml:"variables"`
	Inventory     map[string]ItemState         `json:"inventory" yaml:"inventory"`
	Relationships map[string]RelationshipState `json:"relationships" yaml:"relationships"`
	Environment   Environment                  `json:"environment" yaml:"environment"`
	ChangeHistory []Change                     `json:"change_history" yaml:"change_history"`
	LastUpdated   time.Time                    `json:"last_updated" yaml:"last_updated"`
}

// Result is what one engine call hands back to the console.
type Result struct {
	Output    []string
	Fragment  *Fragment // nil when nothing was selected
	Choices   []Choice
	Eligible  int
	NoContent bool // no fragment was eligible; Output holds fallback text
	Blocked   bool // a move was refused by the neighbor's requirement
}
