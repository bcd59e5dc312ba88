// Package parser converts console command strings into Intent structs.
// Intentionally dumb: no NLP, just pattern matching.
package parser

import (
	"strconv"
	"strings"

	"github.com/nathoo/worldweaver/types"
)

var directionExpansions = map[string]string{
	"n":  "north",
	"s":  "south",
	"e":  "east",
	"w":  "west",
	"ne": "northeast",
	"nw": "northwest",
	"se": "southeast",
	"sw": "southwest",
}

// Full direction names that are standalone shortcuts for "go <dir>".
var directionNames = map[string]bool{
	"north": true, "south": true, "east": true, "west": true,
	"northeast": true, "northwest": true, "southeast": true, "southwest": true,
}

var verbAliases = map[string]string{
	// Look
	"l":        "look",
	"describe": "look",
	"where":    "look",

	// Next fragment
	"continue": "next",
	"c":        "next",
	"again":    "next",

	// Choose
	"pick":   "choose",
	"select": "choose",
	"option": "choose",

	// Movement
	"walk":   "go",
	"run":    "go",
	"move":   "go",
	"head":   "go",
	"travel": "go",

	// Navigation
	"directions": "exits",
	"nav":        "exits",
	"around":     "exits",

	// Map
	"m":     "map",
	"chart": "map",

	// Inventory
	"inv": "inventory",
	"i":   "inventory",

	// Status
	"stats":   "status",
	"state":   "status",
	"summary": "status",
	"me":      "status",

	// Use
	"consume": "use",
	"apply":   "use",

	// Wait
	"z":    "wait",
	"rest": "wait",
}

var prepositions = map[string]bool{
	"on": true, "at": true, "to": true,
	"with": true, "in": true,
}

var articles = map[string]bool{
	"the": true, "a": true, "an": true,
}

// Parse converts a raw command string into an Intent.
func Parse(input string) types.Intent {
	input = strings.TrimSpace(input)
	if input == "" {
		return types.Intent{}
	}

	words := strings.Fields(strings.ToLower(input))

	if len(words) == 1 {
		// Direction shortcut: bare "n", "south", etc. → go <direction>
		if dir, ok := directionExpansions[words[0]]; ok {
			return types.Intent{Verb: "go", Object: dir}
		}
		if directionNames[words[0]] {
			return types.Intent{Verb: "go", Object: words[0]}
		}
		// Bare number → choose <n>
		if _, err := strconv.Atoi(words[0]); err == nil {
			return types.Intent{Verb: "choose", Object: words[0]}
		}
	}

	// Handle multi-word verb phrases before general parsing.
	words = expandMultiWordVerbs(words)

	// Apply verb aliases.
	if alias, ok := verbAliases[words[0]]; ok {
		words[0] = alias
	}

	verb := words[0]
	rest := stripArticles(words[1:])

	// "go n" → "go north"
	if verb == "go" && len(rest) == 1 {
		if dir, ok := directionExpansions[rest[0]]; ok {
			rest[0] = dir
		}
	}

	// Use the first preposition as a delimiter between object and target.
	object, target := splitOnPreposition(rest)

	return types.Intent{
		Verb:   verb,
		Object: object,
		Target: target,
	}
}

// expandMultiWordVerbs handles "look around", "go to", "show map" etc.
func expandMultiWordVerbs(words []string) []string {
	if len(words) < 2 {
		return words
	}

	switch words[0] {
	case "look":
		if words[1] == "around" {
			return append([]string{"exits"}, words[2:]...)
		}
	case "go", "walk", "head":
		if words[1] == "to" || words[1] == "towards" {
			return append([]string{"go"}, words[2:]...)
		}
	case "show", "view":
		switch words[1] {
		case "map":
			return append([]string{"map"}, words[2:]...)
		case "inventory", "items":
			return append([]string{"inventory"}, words[2:]...)
		case "status", "state":
			return append([]string{"status"}, words[2:]...)
		}
	case "choice", "option":
		return append([]string{"choose"}, words[1:]...)
	}

	return words
}

// stripArticles removes articles ("the", "a", "an") from the word list.
func stripArticles(words []string) []string {
	result := make([]string, 0, len(words))
	for _, w := range words {
		if !articles[w] {
			result = append(result, w)
		}
	}
	return result
}

// splitOnPreposition splits words on the first preposition.
// Words before the preposition become the object, words after become the target.
// If no preposition is found, all words become the object.
func splitOnPreposition(words []string) (object, target string) {
	for i, w := range words {
		if prepositions[w] {
			object = strings.Join(words[:i], " ")
			target = strings.Join(words[i+1:], " ")
			return object, target
		}
	}
	return strings.Join(words, " "), ""
}
