package postgres

import "strings"

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likeContains builds an ILIKE pattern matching s anywhere. Use with
// ESCAPE '!'.
func likeContains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
