package mysql

import "strings"

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likeContains builds a case-folded LIKE pattern matching s anywhere.
// Use with ESCAPE '!'.
func likeContains(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
