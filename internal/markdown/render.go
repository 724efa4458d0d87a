// Package markdown renders the small markdown dialect Airtable long-text
// fields use into HTML fragments for event descriptions.
//
// The renderer is best-effort: unbalanced delimiters pass through and the
// output is not validated as well-formed HTML.
package markdown

import (
	"regexp"
	"strings"
)

var (
	h4 = regexp.MustCompile(`(?m)^####[ \t]+(.+)$`)
	h3 = regexp.MustCompile(`(?m)^###[ \t]+(.+)$`)
	h2 = regexp.MustCompile(`(?m)^##[ \t]+(.+)$`)
	h1 = regexp.MustCompile(`(?m)^#[ \t]+(.+)$`)

	boldStars       = regexp.MustCompile(`(?s)\*\*(.+?)\*\*`)
	boldUnderscores = regexp.MustCompile(`(?s)__(.+?)__`)
	italicStar      = regexp.MustCompile(`\*([^*]+?)\*`)
	link            = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

	brAfterBlock = regexp.MustCompile(`(</h[1-4]>|</li>|</ul>|<ul>|<ul class="nested">)<br>`)
)

// Render converts raw into an HTML fragment. It is pure: the same input
// always yields the same output.
func Render(raw string) string {
	if raw == "" {
		return ""
	}

	out := inline(raw)
	out = nestLists(out)

	out = strings.ReplaceAll(out, "\n\n", "</p><p>")
	out = strings.ReplaceAll(out, "\n", "<br>")
	out = brAfterBlock.ReplaceAllString(out, "${1}")

	if strings.Contains(out, "</p><p>") {
		out = "<p>" + out + "</p>"
	}
	return out
}

// inline applies headers, emphasis and links, in that order so the longer
// delimiters win over the shorter ones.
func inline(s string) string {
	s = h4.ReplaceAllString(s, "<h4>${1}</h4>")
	s = h3.ReplaceAllString(s, "<h3>${1}</h3>")
	s = h2.ReplaceAllString(s, "<h2>${1}</h2>")
	s = h1.ReplaceAllString(s, "<h1>${1}</h1>")

	s = boldStars.ReplaceAllString(s, "<strong>${1}</strong>")
	s = boldUnderscores.ReplaceAllString(s, "<strong>${1}</strong>")
	s = italicStar.ReplaceAllString(s, "<em>${1}</em>")
	s = underscoreItalics(s)

	return link.ReplaceAllString(s, `<a href="${2}" target="_blank" rel="noopener">${1}</a>`)
}

// underscoreItalics turns _x_ into <em>x</em> unless either underscore
// touches a letter or digit, so snake_case identifiers survive.
func underscoreItalics(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	i := 0
	for i < len(s) {
		if s[i] != '_' || (i > 0 && isAlnum(s[i-1])) {
			b.WriteByte(s[i])
			i++
			continue
		}

		// The content cannot hold an underscore, so the closing delimiter is
		// the next one.
		j := strings.IndexByte(s[i+1:], '_')
		if j <= 0 {
			b.WriteByte(s[i])
			i++
			continue
		}
		end := i + 1 + j
		if end+1 < len(s) && isAlnum(s[end+1]) {
			b.WriteByte(s[i])
			i++
			continue
		}

		b.WriteString("<em>")
		b.WriteString(s[i+1 : end])
		b.WriteString("</em>")
		i = end + 1
	}
	return b.String()
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
