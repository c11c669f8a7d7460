// Package sanitize holds the pure text filters applied around the speech
// engines: transcript rejection before a turn and reply cleanup after it.
package sanitize

import (
	"strings"
	"unicode"
)

const (
	minRepeatLen   = 5
	minRepeatCount = 3
)

// HasRepeatedPhrase reports whether some run of at least five characters
// (not crossing a newline) appears three or more times in a row, separated
// only by optional whitespace. Whisper produces this when it hallucinates
// over silence.
func HasRepeatedPhrase(text string) bool {
	r := []rune(text)
	n := len(r)
	for i := 0; i < n; i++ {
		maxLen := n - i
		for k := i; k < n; k++ {
			if r[k] == '\n' {
				maxLen = k - i
				break
			}
		}
		for l := minRepeatLen; l <= maxLen && i+l*minRepeatCount <= n; l++ {
			if repeatsAt(r, i+l, r[i:i+l], minRepeatCount-1) {
				return true
			}
		}
	}
	return false
}

// repeatsAt reports whether unit occurs at least times more times starting
// at pos, each occurrence optionally preceded by whitespace.
func repeatsAt(r []rune, pos int, unit []rune, times int) bool {
	if times == 0 {
		return true
	}
	for k := pos; ; k++ {
		if hasPrefixAt(r, k, unit) && repeatsAt(r, k+len(unit), unit, times-1) {
			return true
		}
		if k >= len(r) || !unicode.IsSpace(r[k]) {
			return false
		}
	}
}

func hasPrefixAt(r []rune, pos int, unit []rune) bool {
	if pos+len(unit) > len(r) {
		return false
	}
	for j, c := range unit {
		if r[pos+j] != c {
			return false
		}
	}
	return true
}

type script struct {
	name string
	in   func(rune) bool
}

var scripts = []script{
	{"latin", func(c rune) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }},
	{"arabic", func(c rune) bool { return c >= 0x0600 && c <= 0x06FF }},
	{"cyrillic", func(c rune) bool { return c >= 0x0400 && c <= 0x04FF }},
	{"devanagari", func(c rune) bool { return c >= 0x0900 && c <= 0x097F }},
	{"cjk", func(c rune) bool { return c >= 0x4E00 && c <= 0x9FFF }},
}

// HasMixedScripts reports whether the text uses letters from more than one
// of Latin, Arabic, Cyrillic, Devanagari and CJK ideographs.
func HasMixedScripts(text string) bool {
	found := make([]bool, len(scripts))
	count := 0
	for _, c := range text {
		for i, s := range scripts {
			if !found[i] && s.in(c) {
				found[i] = true
				count++
				if count > 1 {
					return true
				}
			}
		}
	}
	return false
}

// IsGarbled is the combined rejection predicate.
func IsGarbled(text string) bool {
	return HasRepeatedPhrase(text) || HasMixedScripts(text)
}

// CleanTranscript trims text and returns "" when it looks garbled.
func CleanTranscript(text string) string {
	text = strings.TrimSpace(text)
	if IsGarbled(text) {
		return ""
	}
	return text
}
