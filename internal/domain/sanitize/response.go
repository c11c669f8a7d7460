package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

const markdownChars = "*_~`#[]()<>"

// EmojiRanges lists the pictograph and symbol blocks removed from replies,
// merged into sorted non-overlapping ranges. U+24C2..U+1F251 subsumes the
// dingbats (U+2702..U+27B0) and regional indicators (U+1F1E0..U+1F1FF).
var EmojiRanges = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x24C2, Hi: 0xFFFF, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x10000, Hi: 0x1F251, Stride: 1},
		{Lo: 0x1F300, Hi: 0x1F5FF, Stride: 1},
		{Lo: 0x1F600, Hi: 0x1F64F, Stride: 1},
		{Lo: 0x1F680, Hi: 0x1F6FF, Stride: 1},
	},
}

// EmojiPattern is the same set expressed as a regexp class.
var EmojiPattern = regexp.MustCompile(
	`[` +
		`\x{1F600}-\x{1F64F}` + // emoticons
		`\x{1F300}-\x{1F5FF}` + // symbols & pictographs
		`\x{1F680}-\x{1F6FF}` + // transport & map
		`\x{1F1E0}-\x{1F1FF}` + // flags
		`\x{2702}-\x{27B0}` +
		`\x{24C2}-\x{1F251}` +
		`]+`)

var markdownPattern = regexp.MustCompile("[*_~`#\\[\\]()<>]")

// CleanResponse strips markdown control characters and emoji from a model
// reply, then trims surrounding whitespace. It is idempotent.
func CleanResponse(text string) string {
	return strings.TrimSpace(strings.Map(func(c rune) rune {
		if strings.ContainsRune(markdownChars, c) || unicode.Is(EmojiRanges, c) {
			return -1
		}
		return c
	}, text))
}

// CleanResponseRegexp is the regexp-based equivalent of CleanResponse.
func CleanResponseRegexp(text string) string {
	text = markdownPattern.ReplaceAllString(text, "")
	text = EmojiPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
