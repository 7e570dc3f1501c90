package mention

import (
	"regexp"
	"unicode/utf8"
)

// Trigger opens mention context.
const Trigger = '@'

// triggerPattern matches an open mention ending at the cursor: the trigger
// followed by non-whitespace, non-trigger characters. Whitespace includes
// newlines, so the match never leaves the current line.
var triggerPattern = regexp.MustCompile(`@([^\s@]*)$`)

// clampCursor bounds cursor to text and snaps it back to a rune start.
func clampCursor(text string, cursor int) int {
	if cursor < 0 {
		return 0
	}
	if cursor > len(text) {
		return len(text)
	}
	for cursor > 0 && cursor < len(text) && !utf8.RuneStart(text[cursor]) {
		cursor--
	}
	return cursor
}

// triggerIndex returns the byte offset of the trigger that opens the
// mention under the cursor.
func triggerIndex(text string, cursor int) (int, bool) {
	cursor = clampCursor(text, cursor)
	loc := triggerPattern.FindStringIndex(text[:cursor])
	if loc == nil {
		return 0, false
	}
	return loc[0], true
}

// DetectTrigger reports whether the cursor sits inside an open mention.
func DetectTrigger(text string, cursor int) bool {
	_, ok := triggerIndex(text, cursor)
	return ok
}

// ExtractQuery returns the text between the nearest open trigger and the
// cursor, or "" when no mention is open.
func ExtractQuery(text string, cursor int) string {
	idx, ok := triggerIndex(text, cursor)
	if !ok {
		return ""
	}
	return text[idx+1 : clampCursor(text, cursor)]
}
