package sfc

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// virtualTags never render an element, so they get no scope attribute
var virtualTags = map[string]bool{
	"template":   true,
	"slot":       true,
	"component":  true,
	"transition": true,
	"keep-alive": true,
}

// scopeTemplate adds the scope attribute to every element start tag
func scopeTemplate(template, attr string) string {
	z := html.NewTokenizer(strings.NewReader(template))
	var out strings.Builder
	out.Grow(len(template) + 32)

	for {
		tt := z.Next()
		raw := z.Raw()
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				// keep whatever the tokenizer could not consume
				out.Write(raw)
			}
			return out.String()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if virtualTags[string(name)] {
				out.Write(raw)
				continue
			}
			cut := len(raw) - 1
			if tt == html.SelfClosingTagToken && cut > 0 && raw[cut-1] == '/' {
				cut--
			}
			out.Write(bytes.TrimRight(raw[:cut], " \t\r\n"))
			out.WriteString(" " + attr)
			out.Write(raw[cut:])
		default:
			out.Write(raw)
		}
	}
}

// groupingRules contain nested rules that get scoped too
var groupingRules = []string{"@media", "@supports", "@container", "@layer", "@document"}

// scopeCSS appends the attribute selector to every selector of every rule.
// Declarations, comments and non-grouping at-rules are copied untouched.
func scopeCSS(css, attr string) string {
	var out strings.Builder
	out.Grow(len(css) + 64)
	scopeRules(css, "["+attr+"]", &out)
	return out.String()
}

func scopeRules(css, sel string, out *strings.Builder) {
	i := 0
	for i < len(css) {
		start := i
		end, term := scanPrelude(css, i)
		prelude := css[start:end]
		if term == 0 {
			out.WriteString(prelude)
			return
		}
		if term == ';' {
			out.WriteString(prelude)
			out.WriteByte(';')
			i = end + 1
			continue
		}

		bodyEnd := matchBrace(css, end)
		body := css[end+1 : bodyEnd]
		trimmed := strings.TrimSpace(prelude)

		switch {
		case strings.HasPrefix(trimmed, "@"):
			out.WriteString(prelude)
			out.WriteByte('{')
			if isGrouping(trimmed) {
				scopeRules(body, sel, out)
			} else {
				out.WriteString(body)
			}
		default:
			lead := prelude[:len(prelude)-len(strings.TrimLeft(prelude, " \t\r\n"))]
			out.WriteString(lead)
			out.WriteString(scopeSelectorList(trimmed, sel))
			out.WriteString(" {")
			out.WriteString(body)
		}
		if bodyEnd < len(css) {
			out.WriteByte('}')
		}
		i = bodyEnd + 1
	}
}

func isGrouping(prelude string) bool {
	lower := strings.ToLower(prelude)
	for _, g := range groupingRules {
		if strings.HasPrefix(lower, g) {
			return true
		}
	}
	return false
}

// scanPrelude finds the next '{' or ';' outside comments and strings
func scanPrelude(css string, i int) (int, byte) {
	for i < len(css) {
		switch c := css[i]; c {
		case '/':
			if i+1 < len(css) && css[i+1] == '*' {
				i = skipComment(css, i)
				continue
			}
		case '"', '\'':
			i = skipString(css, i)
			continue
		case '{', ';':
			return i, c
		}
		i++
	}
	return len(css), 0
}

// matchBrace returns the index of the brace closing the one at open
func matchBrace(css string, open int) int {
	depth := 0
	i := open
	for i < len(css) {
		switch css[i] {
		case '/':
			if i+1 < len(css) && css[i+1] == '*' {
				i = skipComment(css, i)
				continue
			}
		case '"', '\'':
			i = skipString(css, i)
			continue
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
		i++
	}
	return len(css)
}

func skipComment(css string, i int) int {
	end := strings.Index(css[i+2:], "*/")
	if end < 0 {
		return len(css)
	}
	return i + 2 + end + 2
}

func skipString(css string, i int) int {
	quote := css[i]
	i++
	for i < len(css) {
		switch css[i] {
		case '\\':
			i += 2
			continue
		case quote:
			return i + 1
		}
		i++
	}
	return len(css)
}

func scopeSelectorList(list, sel string) string {
	parts := splitSelectors(list)
	for i, part := range parts {
		parts[i] = scopeSelector(strings.TrimSpace(part), sel)
	}
	return strings.Join(parts, ", ")
}

// splitSelectors splits on commas that are not inside parentheses
func splitSelectors(list string) []string {
	var parts []string
	depth, last := 0, 0
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, list[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, list[last:])
}

// scopeSelector puts the attribute on the last compound selector, before a
// pseudo-element. Deep combinators stop the scoping where they appear.
func scopeSelector(s, sel string) string {
	for _, deep := range []string{"::v-deep", ">>>", "/deep/"} {
		if idx := strings.Index(s, deep); idx >= 0 {
			head := strings.TrimSpace(s[:idx])
			tail := strings.TrimSpace(s[idx+len(deep):])
			return strings.TrimSpace(head + sel + " " + tail)
		}
	}
	if idx := strings.Index(s, ":deep("); idx >= 0 {
		inner := s[idx+len(":deep("):]
		inner = strings.TrimSuffix(strings.TrimSpace(inner), ")")
		return strings.TrimSpace(strings.TrimSpace(s[:idx]) + sel + " " + inner)
	}
	if idx := strings.Index(s, "::"); idx >= 0 {
		return s[:idx] + sel + s[idx:]
	}
	return s + sel
}
