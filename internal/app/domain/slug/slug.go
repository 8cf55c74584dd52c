// Package slug builds URL slugs for applications and collections.
package slug

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	nonWord = regexp.MustCompile(`[^\w ]+`)
	spaces  = regexp.MustCompile(` +`)
)

// Base lowercases name, drops non-word characters and joins words with '-'.
func Base(name string) string {
	s := strings.ToLower(name)
	s = nonWord.ReplaceAllString(s, "")
	s = spaces.ReplaceAllString(strings.TrimSpace(s), "-")
	return s
}

// Generate returns Base(name) suffixed with the last six digits of the unix
// millisecond timestamp of now.
func Generate(name string, now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return Base(name) + "-" + ms
}
