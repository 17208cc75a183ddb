package sfc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/internal/hashutil"
)

// componentVar holds the component options inside the emitted module
const componentVar = "__sfc__"

// Options tunes the emitted module
type Options struct {
	// Development keeps the source file name on the component
	Development bool
}

// Result is a compiled component
type Result struct {
	// Script is the JavaScript (or TypeScript, see Lang) module
	Script []byte

	// Lang is the language of Script: "js" or "ts"
	Lang string

	// CSS concatenates every style block; empty when there is none
	CSS []byte

	// ScopeID is set when at least one style block is scoped
	ScopeID string
}

var (
	exportDefault   = regexp.MustCompile(`(?m)^[ \t]*export\s+default\s+`)
	importLine      = regexp.MustCompile(`(?m)^[ \t]*import\s[^;\n]*(?:;|\n|$)`)
	importClause    = regexp.MustCompile(`^[ \t]*import\s+(.*?)\s+from\s`)
	statementExport = regexp.MustCompile(`(?m)^([ \t]*)export\s+`)
	topLevelDecl    = regexp.MustCompile(`(?m)^(?:export\s+)?(?:const|let|var|async\s+function\*?|function\*?|class)\s+([A-Za-z_$][\w$]*)`)
)

// ScopeID derives a stable scope id from the component path
func ScopeID(rel string) string {
	return "data-v-" + hashutil.Key([]byte(rel))[:8]
}

// Compile turns a parsed component into a script module and a stylesheet.
// The template is attached as a string for the runtime compiler.
func Compile(desc *Descriptor, opts Options) (*Result, error) {
	res := &Result{Lang: "js"}

	scoped := false
	for _, style := range desc.Styles {
		if lang := style.Lang("css"); lang != "css" {
			return nil, errors.Newf(errors.ErrComponentParse,
				"%s:%d: unsupported style language %q", desc.Path, style.Line, lang).WithPath(desc.Path)
		}
		if style.Has("scoped") {
			scoped = true
		}
	}
	if scoped {
		res.ScopeID = ScopeID(desc.Path)
	}

	lang, err := scriptLang(desc)
	if err != nil {
		return nil, err
	}
	res.Lang = lang

	var b strings.Builder
	switch {
	case desc.ScriptSetup != nil:
		if err := writeSetup(&b, desc); err != nil {
			return nil, err
		}
	case desc.Script != nil:
		writeOptions(&b, desc.Script.Content)
	default:
		fmt.Fprintf(&b, "const %s = {};\n", componentVar)
	}

	if desc.Template != nil {
		template := strings.TrimSpace(desc.Template.Content)
		if res.ScopeID != "" {
			template = scopeTemplate(template, res.ScopeID)
		}
		fmt.Fprintf(&b, "%s.template = %s;\n", componentVar, jsString(template))
	}
	if res.ScopeID != "" {
		fmt.Fprintf(&b, "%s.__scopeId = %q;\n", componentVar, res.ScopeID)
	}
	if opts.Development {
		fmt.Fprintf(&b, "%s.__file = %q;\n", componentVar, desc.Path)
	}
	fmt.Fprintf(&b, "export default %s;\n", componentVar)
	res.Script = []byte(b.String())

	var css strings.Builder
	for _, style := range desc.Styles {
		content := style.Content
		if style.Has("scoped") {
			content = scopeCSS(content, res.ScopeID)
		}
		css.WriteString(strings.TrimSpace(content))
		css.WriteString("\n")
	}
	res.CSS = []byte(css.String())
	if strings.TrimSpace(css.String()) == "" {
		res.CSS = nil
	}
	return res, nil
}

func scriptLang(desc *Descriptor) (string, error) {
	lang := ""
	for _, block := range []*Block{desc.Script, desc.ScriptSetup} {
		if block == nil {
			continue
		}
		l := block.Lang("js")
		switch l {
		case "js", "ts":
		default:
			return "", errors.Newf(errors.ErrComponentParse,
				"%s:%d: unsupported script language %q", desc.Path, block.Line, l).WithPath(desc.Path)
		}
		if lang != "" && lang != l {
			return "", errors.Newf(errors.ErrComponentParse,
				"%s: <script> and <script setup> must use the same language", desc.Path).WithPath(desc.Path)
		}
		lang = l
	}
	if lang == "" {
		lang = "js"
	}
	return lang, nil
}

// writeOptions rewrites the default export into the component variable
func writeOptions(b *strings.Builder, script string) {
	loc := exportDefault.FindStringIndex(script)
	if loc == nil {
		b.WriteString(script)
		fmt.Fprintf(b, "\nconst %s = {};\n", componentVar)
		return
	}
	b.WriteString(script[:loc[0]])
	fmt.Fprintf(b, "const %s = ", componentVar)
	b.WriteString(script[loc[1]:])
	b.WriteString("\n")
}

// writeSetup wraps a <script setup> body into a setup() function. Imports
// stay at module level and every top-level binding is exposed to the
// template.
func writeSetup(b *strings.Builder, desc *Descriptor) error {
	body := desc.ScriptSetup.Content

	var imports []string
	bindings := make(map[string]bool)
	body = importLine.ReplaceAllStringFunc(body, func(line string) string {
		imports = append(imports, strings.TrimSpace(line))
		for _, name := range importedNames(line) {
			bindings[name] = true
		}
		return ""
	})

	props := "undefined"
	if args, rest, ok := extractMacro(body, "defineProps"); ok {
		props = args
		body = rest
	}
	for _, m := range topLevelDecl.FindAllStringSubmatch(body, -1) {
		bindings[m[1]] = true
	}
	body = statementExport.ReplaceAllString(body, "$1")

	for _, line := range imports {
		b.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			b.WriteString(";")
		}
		b.WriteString("\n")
	}
	if desc.Script != nil {
		writeOptions(b, desc.Script.Content)
	} else {
		fmt.Fprintf(b, "const %s = {};\n", componentVar)
	}

	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	if props != "undefined" {
		fmt.Fprintf(b, "%s.props = %s;\n", componentVar, props)
	}
	fmt.Fprintf(b, "%s.setup = function setup(__props) {\n", componentVar)
	b.WriteString(strings.TrimSpace(body))
	fmt.Fprintf(b, "\nreturn { %s };\n};\n", strings.Join(names, ", "))
	return nil
}

// importedNames lists the local bindings an import statement introduces
func importedNames(line string) []string {
	m := importClause.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	clause := m[1]
	if strings.HasPrefix(clause, "type ") {
		return nil
	}
	var names []string
	if open := strings.Index(clause, "{"); open >= 0 {
		closeIdx := strings.Index(clause, "}")
		if closeIdx > open {
			for _, spec := range strings.Split(clause[open+1:closeIdx], ",") {
				fields := strings.Fields(spec)
				if len(fields) == 0 || fields[0] == "type" {
					continue
				}
				names = append(names, fields[len(fields)-1])
			}
		}
		clause = clause[:open]
	}
	for _, part := range strings.Split(clause, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, "*") {
			fields := strings.Fields(part)
			names = append(names, fields[len(fields)-1])
			continue
		}
		names = append(names, part)
	}
	return names
}

// extractMacro replaces the first call to name(...) with __props and
// returns the call arguments
func extractMacro(body, name string) (args, rest string, ok bool) {
	idx := strings.Index(body, name+"(")
	if idx < 0 {
		return "", body, false
	}
	open := idx + len(name)
	depth := 0
	for i := open; i < len(body); i++ {
		switch body[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				args = strings.TrimSpace(body[open+1 : i])
				if args == "" {
					args = "{}"
				}
				return args, body[:idx] + "__props" + body[i+1:], true
			}
		}
	}
	return "", body, false
}

// jsString quotes s as a JavaScript string literal, leaving markup readable
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
