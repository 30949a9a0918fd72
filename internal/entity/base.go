package entity

import (
	"sort"
	"strings"
	"time"

	"github.com/plantline/convo/pkg/constant"
)

// NowUnixMilli returns current unix timestamp in milliseconds
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// DirectPairKey builds the unique key of a direct conversation between two users.
// The key is order-independent: d:{min(userA,userB)}:{max(userA,userB)}.
// Uses ":" as separator between userIds to support userIds containing "_".
func DirectPairKey(userA, userB string) string {
	users := []string{userA, userB}
	sort.Strings(users)
	return constant.DirectPairPrefix + users[0] + ":" + users[1]
}

// ExtractMentions scans message content for @userId tokens.
// A mention is "@" followed by a run of letters, digits, '-' or '_',
// terminated by whitespace, punctuation or end of content.
func ExtractMentions(content string) []string {
	var mentions []string
	seen := make(map[string]bool)

	for i := 0; i < len(content); i++ {
		if content[i] != '@' {
			continue
		}
		j := i + 1
		for j < len(content) && isMentionChar(content[j]) {
			j++
		}
		if j > i+1 {
			id := content[i+1 : j]
			if !seen[id] {
				seen[id] = true
				mentions = append(mentions, id)
			}
		}
		i = j - 1
	}
	return mentions
}

func isMentionChar(c byte) bool {
	return c == '-' || c == '_' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// Preview truncates message content for notification bodies
func Preview(content string, limit int) string {
	content = strings.TrimSpace(content)
	if limit <= 0 || len(content) <= limit {
		return content
	}
	// Cut on a rune boundary
	cut := limit
	for cut > 0 && content[cut]&0xC0 == 0x80 {
		cut--
	}
	return content[:cut] + "…"
}
