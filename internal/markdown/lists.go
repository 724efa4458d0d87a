package markdown

import (
	"regexp"
	"strings"
)

var (
	subBullet      = regexp.MustCompile(`^-\s+-\s+(.+)$`)
	indentedBullet = regexp.MustCompile(`^(\s{2,})-\s+(.+)$`)
	primaryBullet  = regexp.MustCompile(`^-\s+(.+)$`)
)

const (
	openTop    = "<ul>"
	openNested = `<ul class="nested">`
	closeList  = "</ul>"
)

// listStack tracks the open <ul> levels while lines are emitted.
type listStack struct {
	out   []string
	depth int
}

func (l *listStack) open() {
	if l.depth == 0 {
		l.out = append(l.out, openTop)
	} else {
		l.out = append(l.out, openNested)
	}
	l.depth++
}

func (l *listStack) closeTo(depth int) {
	for l.depth > depth {
		l.out = append(l.out, closeList)
		l.depth--
	}
}

func (l *listStack) item(content string) {
	l.out = append(l.out, "<li>"+content+"</li>")
}

// nestLists turns bullet lines into nested <ul> blocks. Nesting comes from a
// "- - " prefix (one level down), from leading indentation (two spaces per
// level), or a plain "- " for the top level. Any other line closes every open
// list before it is emitted unchanged.
func nestLists(text string) string {
	lines := strings.Split(text, "\n")
	l := &listStack{out: make([]string, 0, len(lines))}

	for _, line := range lines {
		if m := subBullet.FindStringSubmatch(line); m != nil {
			if l.depth == 0 {
				l.open()
			}
			if l.depth == 1 {
				l.open()
			}
			l.closeTo(2)
			l.item(m[1])
			continue
		}

		if m := indentedBullet.FindStringSubmatch(line); m != nil {
			level := len(m[1])/2 + 1
			for l.depth < level {
				l.open()
			}
			l.closeTo(level)
			l.item(m[2])
			continue
		}

		if m := primaryBullet.FindStringSubmatch(line); m != nil {
			l.closeTo(1)
			if l.depth == 0 {
				l.open()
			}
			l.item(m[1])
			continue
		}

		l.closeTo(0)
		l.out = append(l.out, line)
	}
	l.closeTo(0)

	return strings.Join(l.out, "\n")
}
