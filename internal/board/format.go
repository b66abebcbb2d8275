package board

import (
	"fmt"
	"strings"

	"giftboard/internal/storage"
)

const (
	// maxMessageLen is the sink's payload ceiling (Discord caps content at
	// 2000 characters; 1990 leaves headroom for the transport's own framing).
	maxMessageLen = 1990
	maxNameLen    = 24
)

// Format renders a leaderboard as a fixed-width code-block message.
// Pure: its only failure mode is a truncated string.
func Format(title string, rows []storage.RankEntry) string {
	lines := []string{
		title,
		"",
		"```",
		fmt.Sprintf("%-4s %-24s %8s", "Rank", "User", "Coins"),
		fmt.Sprintf("%s %s %s", strings.Repeat("-", 4), strings.Repeat("-", 24), strings.Repeat("-", 8)),
	}
	for i, r := range rows {
		name := r.Gifter
		if name == "" {
			name = "unknown"
		}
		lines = append(lines, fmt.Sprintf("%-4d %-24s %8d", i+1, truncateRunes(name, maxNameLen), r.Total))
	}
	lines = append(lines, "```")

	return truncateRunes(strings.Join(lines, "\n"), maxMessageLen)
}

// truncateRunes cuts on rune boundaries. Gifter names are routinely
// multi-byte; slicing bytes could leave invalid UTF-8 in the posted message.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
