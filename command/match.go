package command

import "strings"

// MatchPrefixNames reports the longest name that matches the start of
// content. A name matches when the content equals it exactly or continues
// with a space immediately after it, so "hi" does not match "hime there"
// but "hime" does.
func MatchPrefixNames(content string, names []string) (string, bool) {
	best := ""
	found := false
	for _, name := range names {
		if name == "" || len(name) < len(best) {
			continue
		}
		if !strings.HasPrefix(content, name) {
			continue
		}
		if len(content) > len(name) && content[len(name)] != ' ' {
			continue
		}
		best = name
		found = true
	}
	return best, found
}

// stripName removes a matched name and any following spaces from content.
func stripName(content, name string) string {
	return strings.TrimLeft(content[len(name):], " ")
}
