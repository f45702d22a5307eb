package usecase

import (
	"regexp"
	"strings"

	"github.com/kirillkom/scanscribe/internal/core/domain"
)

var (
	markdownLinkPattern = regexp.MustCompile(`\[([^\n\r\x{2028}\x{2029}]*?)\]\(([^\n\r\x{2028}\x{2029}]*?)\)`)
	lineBreakRunPattern = regexp.MustCompile(`(?:<br>){3,}`)
)

// FormatResources converts the model's Markdown link list into the HTML
// fragment shown in the resources pane:
//
//	bullet markers at line starts become <li>
//	everything from the first <li> on is wrapped in <ol></ol>
//	[text](url) becomes an anchor opening in a new tab
//	newlines become <br>, runs of three or more collapse to two
func FormatResources(markdown string) string {
	html := replaceBulletMarkers(markdown)

	if idx := strings.Index(html, "<li>"); idx >= 0 {
		html = html[:idx] + "<ol>" + html[idx:] + "</ol>"
	}

	html = markdownLinkPattern.ReplaceAllString(html,
		`<a href="${2}" target="_blank" rel="noopener noreferrer">${1}</a>`)

	html = strings.ReplaceAll(html, "\n", "<br>")
	return lineBreakRunPattern.ReplaceAllString(html, "<br><br>")
}

// replaceBulletMarkers replaces every match of the multiline pattern
// ^\s*[*-]\s* with "<li>". Whitespace and line starts follow the
// ECMAScript definitions, so the marker and the spaces around it may span
// blank lines.
func replaceBulletMarkers(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(runes); {
		if isLineStart(runes, i) {
			j := i
			for j < len(runes) && domain.IsECMASpace(runes[j]) {
				j++
			}
			if j < len(runes) && (runes[j] == '*' || runes[j] == '-') {
				j++
				for j < len(runes) && domain.IsECMASpace(runes[j]) {
					j++
				}
				b.WriteString("<li>")
				i = j
				continue
			}
		}
		b.WriteRune(runes[i])
		i++
	}
	return b.String()
}

func isLineStart(runes []rune, i int) bool {
	return i == 0 || isLineTerminator(runes[i-1])
}

func isLineTerminator(r rune) bool {
	switch r {
	case '\n', '\r', '\u2028', '\u2029':
		return true
	}
	return false
}

