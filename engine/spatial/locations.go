package spatial

import (
	"crypto/md5"
	"encoding/binary"
	"strings"
	"unicode"

	"github.com/nathoo/worldweaver/types"
)

// LocationHint is a canonical location name with the grid offset from the
// origin that names of its kind are drawn toward.
type LocationHint struct {
	Name     string
	Category string
	X, Y     int
	Related  []string
}

// DefaultLocations is the curated location-category table. Hubs sit at the
// origin, compass words along their axis, settlements in the inner ring,
// underground places far west.
var DefaultLocations = []LocationHint{
	// hub
	{Name: "starting_area", Category: "hub", X: 0, Y: 0},
	{Name: "center", Category: "hub", X: 0, Y: 0},
	{Name: "hub", Category: "hub", X: 0, Y: 0},
	{Name: "plaza", Category: "hub", X: 0, Y: 0},
	{Name: "square", Category: "hub", X: 0, Y: 0},
	{Name: "courtyard", Category: "hub", X: 0, Y: 0},
	{Name: "main_hall", Category: "hub", X: 0, Y: 0},

	// north
	{Name: "north", Category: "direction", X: 0, Y: -2},
	{Name: "northern", Category: "direction", X: 0, Y: -2},
	{Name: "mountain", Category: "nature", X: 0, Y: -3, Related: []string{"peak", "summit"}},
	{Name: "peak", Category: "nature", X: 0, Y: -4, Related: []string{"mountain"}},
	{Name: "summit", Category: "nature", X: 0, Y: -4, Related: []string{"mountain"}},
	{Name: "highlands", Category: "nature", X: 0, Y: -3, Related: []string{"mountain"}},
	{Name: "tower", Category: "structure", X: 0, Y: -2, Related: []string{"castle", "fortress"}},

	// south
	{Name: "south", Category: "direction", X: 0, Y: 2},
	{Name: "southern", Category: "direction", X: 0, Y: 2},
	{Name: "valley", Category: "nature", X: 0, Y: 3, Related: []string{"river", "stream"}},
	{Name: "lowlands", Category: "nature", X: 0, Y: 3, Related: []string{"valley"}},
	{Name: "swamp", Category: "nature", X: 0, Y: 4, Related: []string{"marsh", "bog"}},
	{Name: "marsh", Category: "nature", X: 0, Y: 4, Related: []string{"swamp"}},
	{Name: "bog", Category: "nature", X: 0, Y: 4, Related: []string{"swamp"}},

	// east
	{Name: "east", Category: "direction", X: 2, Y: 0},
	{Name: "eastern", Category: "direction", X: 2, Y: 0},
	{Name: "sunrise", Category: "direction", X: 3, Y: 0},
	{Name: "dawn", Category: "direction", X: 3, Y: 0},
	{Name: "coast", Category: "nature", X: 4, Y: 0, Related: []string{"shore", "beach"}},
	{Name: "shore", Category: "nature", X: 4, Y: 0, Related: []string{"coast", "beach"}},
	{Name: "beach", Category: "nature", X: 4, Y: 0, Related: []string{"coast", "shore"}},

	// west
	{Name: "west", Category: "direction", X: -2, Y: 0},
	{Name: "western", Category: "direction", X: -2, Y: 0},
	{Name: "sunset", Category: "direction", X: -3, Y: 0},
	{Name: "dusk", Category: "direction", X: -3, Y: 0},
	{Name: "forest", Category: "nature", X: -3, Y: 0, Related: []string{"woods", "grove"}},
	{Name: "woods", Category: "nature", X: -3, Y: 0, Related: []string{"forest"}},
	{Name: "grove", Category: "nature", X: -2, Y: 0, Related: []string{"forest"}},

	// diagonals
	{Name: "northeast", Category: "direction", X: 2, Y: -2},
	{Name: "northwest", Category: "direction", X: -2, Y: -2},
	{Name: "southeast", Category: "direction", X: 2, Y: 2},
	{Name: "southwest", Category: "direction", X: -2, Y: 2},

	// settlement
	{Name: "tavern", Category: "settlement", X: -1, Y: 1, Related: []string{"inn", "pub"}},
	{Name: "inn", Category: "settlement", X: -1, Y: 1, Related: []string{"tavern"}},
	{Name: "pub", Category: "settlement", X: -1, Y: 1, Related: []string{"tavern"}},
	{Name: "market", Category: "settlement", X: 1, Y: 1, Related: []string{"shop", "vendor"}},
	{Name: "shop", Category: "settlement", X: 1, Y: 1, Related: []string{"market"}},
	{Name: "vendor", Category: "settlement", X: 1, Y: 1, Related: []string{"market"}},
	{Name: "forge", Category: "settlement", X: 1, Y: -1, Related: []string{"smithy", "workshop"}},
	{Name: "smithy", Category: "settlement", X: 1, Y: -1, Related: []string{"forge"}},
	{Name: "workshop", Category: "settlement", X: 1, Y: -1, Related: []string{"forge"}},
	{Name: "temple", Category: "settlement", X: -1, Y: -1, Related: []string{"shrine", "altar"}},
	{Name: "shrine", Category: "settlement", X: -1, Y: -1, Related: []string{"temple"}},
	{Name: "altar", Category: "settlement", X: -1, Y: -1, Related: []string{"temple"}},
	{Name: "castle", Category: "settlement", X: 0, Y: -1, Related: []string{"fortress", "palace"}},
	{Name: "fortress", Category: "settlement", X: 0, Y: -1, Related: []string{"castle"}},
	{Name: "palace", Category: "settlement", X: 0, Y: -1, Related: []string{"castle"}},

	// underground
	{Name: "cave", Category: "underground", X: -4, Y: -1, Related: []string{"cavern", "grotto"}},
	{Name: "cavern", Category: "underground", X: -4, Y: -1, Related: []string{"cave"}},
	{Name: "grotto", Category: "underground", X: -4, Y: -1, Related: []string{"cave"}},
	{Name: "dungeon", Category: "underground", X: -4, Y: 2, Related: []string{"crypt", "tomb"}},
	{Name: "crypt", Category: "underground", X: -4, Y: 2, Related: []string{"dungeon"}},
	{Name: "tomb", Category: "underground", X: -4, Y: 2, Related: []string{"dungeon"}},
	{Name: "underground", Category: "underground", X: -4, Y: 0, Related: []string{"depths"}},
	{Name: "depths", Category: "underground", X: -4, Y: 0, Related: []string{"underground"}},

	// water
	{Name: "river", Category: "water", X: 2, Y: 1, Related: []string{"stream", "brook"}},
	{Name: "stream", Category: "water", X: 2, Y: 1, Related: []string{"river"}},
	{Name: "brook", Category: "water", X: 2, Y: 1, Related: []string{"river"}},
	{Name: "lake", Category: "water", X: 3, Y: 2, Related: []string{"pond"}},
	{Name: "pond", Category: "water", X: 3, Y: 2, Related: []string{"lake"}},
	{Name: "waterfall", Category: "water", X: 3, Y: -2, Related: []string{"cascade"}},
	{Name: "cascade", Category: "water", X: 3, Y: -2, Related: []string{"waterfall"}},
}

// MatchKind records how a location name was resolved.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchFuzzy
	MatchHash
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchFuzzy:
		return "fuzzy"
	default:
		return "hash"
	}
}

// Mapper turns location names into suggested grid cells.
type Mapper struct {
	hints  []LocationHint
	byName map[string]int
	tokens []map[string]bool
}

// NewMapper builds a Mapper over hints. Earlier entries win ties.
func NewMapper(hints []LocationHint) *Mapper {
	m := &Mapper{
		hints:  hints,
		byName: make(map[string]int, len(hints)),
		tokens: make([]map[string]bool, len(hints)),
	}
	for i, h := range hints {
		name := NormalizeLocation(h.Name)
		if _, dup := m.byName[name]; !dup {
			m.byName[name] = i
		}
		m.tokens[i] = tokenSet(name)
	}
	return m
}

// Suggest returns the cell a location name is drawn toward: the table entry
// of the same name, else the entry with the highest share of its tokens
// present in the name, else a cell derived from a hash of the name.
func (m *Mapper) Suggest(name string) (types.Position, MatchKind) {
	name = NormalizeLocation(name)
	if i, ok := m.byName[name]; ok {
		return hintPosition(m.hints[i]), MatchExact
	}

	words := tokenSet(name)
	best, bestScore := -1, 0.0
	for i, pattern := range m.tokens {
		if len(pattern) == 0 {
			continue
		}
		common := 0
		for w := range pattern {
			if words[w] {
				common++
			}
		}
		if common == 0 {
			continue
		}
		if score := float64(common) / float64(len(pattern)); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 {
		return hintPosition(m.hints[best]), MatchFuzzy
	}
	return HashPosition(name), MatchHash
}

// NormalizeLocation lowercases and trims a location name.
func NormalizeLocation(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// HashPosition folds the MD5 of name into the square [-10, 10] x [-10, 10].
func HashPosition(name string) types.Position {
	sum := md5.Sum([]byte(name))
	h := binary.BigEndian.Uint32(sum[:4])
	return types.Position{
		X: int(h%21) - 10,
		Y: int((h/21)%21) - 10,
	}
}

func hintPosition(h LocationHint) types.Position {
	return types.Position{X: h.X, Y: h.Y}
}

// tokenSet splits a name into its words. Underscores separate words too,
// so "cave_entrance" shares "cave" with that table entry and "hall" scores
// 1/2 against "main_hall".
func tokenSet(s string) map[string]bool {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
