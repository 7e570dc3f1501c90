// Package mention implements inline "@" mention autocompletion over a
// draft: trigger detection, candidate filtering, keyboard navigation and
// splice insertion. It performs no I/O.
package mention

import (
	"strings"
)

// Kind is the category of a mention candidate. KindNone is only used to
// mean "not narrowed".
type Kind int

const (
	KindNone Kind = iota
	KindProblem
	KindFile
	KindFolder
	KindNoResults
)

func (k Kind) String() string {
	switch k {
	case KindProblem:
		return "problem"
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	case KindNoResults:
		return "noResults"
	default:
		return "none"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Candidate is one entry of the mention menu. Value is empty for the
// synthetic browse entry and for the NoResults sentinel.
type Candidate struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value,omitempty"`
}

// Selectable reports whether the candidate may be chosen at all.
func (c Candidate) Selectable() bool {
	return c.Kind != KindNoResults && c.Kind != KindNone
}

// Browse reports whether choosing the candidate drills down into its kind
// instead of inserting text.
func (c Candidate) Browse() bool {
	return c.Selectable() && c.Value == ""
}

var (
	Problems      = Candidate{Kind: KindProblem, Value: "problems"}
	BrowseFolders = Candidate{Kind: KindFolder}
	NoResults     = Candidate{Kind: KindNoResults}
)

// Builtins returns the fixed entries shown ahead of indexed paths.
func Builtins() []Candidate {
	return []Candidate{Problems, BrowseFolders}
}

// FromPaths converts index paths into candidates, keeping their order.
// A trailing "/" marks a folder.
func FromPaths(paths []string) []Candidate {
	out := make([]Candidate, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		kind := KindFile
		if strings.HasSuffix(p, "/") {
			kind = KindFolder
		}
		out = append(out, Candidate{Kind: kind, Value: p})
	}
	return out
}

// Filter returns the candidates whose value contains query, ignoring case,
// in their original order. A narrowed kind restricts the set first and
// hides browse entries. An empty result is the single NoResults sentinel.
func Filter(query string, narrowed Kind, all []Candidate) []Candidate {
	q := strings.ToLower(query)
	var out []Candidate
	for _, c := range all {
		if !c.Selectable() {
			continue
		}
		if narrowed != KindNone && (c.Kind != narrowed || c.Value == "") {
			continue
		}
		if !strings.Contains(strings.ToLower(c.Value), q) {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return []Candidate{NoResults}
	}
	return out
}
