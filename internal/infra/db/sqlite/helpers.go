package sqlite

import (
	"strings"
	"time"
)

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likeContains builds a case-folded LIKE pattern matching s anywhere.
// Use with ESCAPE '!'.
func likeContains(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// timestamps are stored as unix microseconds so range filters compare numbers
func toMicros(t time.Time) int64 { return t.UTC().UnixMicro() }

func fromMicros(us int64) time.Time { return time.UnixMicro(us).UTC() }
