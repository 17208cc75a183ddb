package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/filesystem"
	"github.com/spf13/afero"
	nethtml "golang.org/x/net/html"
)

// DefaultTemplate is used when the public directory has no index.html
const DefaultTemplate = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width,initial-scale=1.0">
    <title><%= htmlWebpackPlugin.options.title %></title>
  </head>
  <body>
    <noscript>This application needs JavaScript enabled.</noscript>
    <div id="app"></div>
  </body>
</html>
`

var (
	baseURLTag = regexp.MustCompile(`<%=\s*BASE_URL\s*%>`)
	titleTag   = regexp.MustCompile(`<%=\s*htmlWebpackPlugin\.options\.title\s*%>`)
)

// HTML emits the index document and copies the public directory
type HTML struct {
	// Template is relative to the project root; defaults to <public_dir>/index.html
	Template string `mapstructure:"template"`

	// Filename is relative to the output directory
	Filename string `mapstructure:"filename"`

	// Title overrides the pipeline title
	Title string `mapstructure:"title"`

	// CopyPublic mirrors the public directory next to the document
	CopyPublic *bool `mapstructure:"copy_public"`
}

// NewHTML creates the html plugin from its options
func NewHTML(options map[string]interface{}) (Plugin, error) {
	p := &HTML{}
	if err := decodeOptions(options, p); err != nil {
		return nil, err
	}
	if p.Filename == "" {
		p.Filename = "index.html"
	}
	if _, err := cleanOutputPath(p.Filename); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *HTML) Name() string { return PluginHTML }

func (p *HTML) Apply(c *Compilation) error {
	c.OnEmit(p.emit)
	return nil
}

func (p *HTML) emit(ctx context.Context, c *Compilation) error {
	cfg := c.Config
	templateRel := p.Template
	if templateRel == "" {
		templateRel = path.Join(filepath.ToSlash(cfg.PublicDir), "index.html")
	}
	templatePath := filepath.Join(cfg.Root, filepath.FromSlash(templateRel))

	template := []byte(DefaultTemplate)
	exists, _, err := filesystem.Stat(c.FS, templatePath)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to stat %s", templateRel).WithPath(templatePath)
	}
	if exists {
		template, err = afero.ReadFile(c.FS, templatePath)
		if err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", templateRel).WithPath(templatePath)
		}
	} else if p.Template != "" {
		return errors.Newf(errors.ErrSourceMissing, "html template %s does not exist", p.Template).WithPath(templatePath)
	}

	if p.CopyPublic == nil || *p.CopyPublic {
		if err := p.copyPublic(c, templatePath); err != nil {
			return err
		}
	}

	entry, err := p.entry(c)
	if err != nil {
		return err
	}
	head, err := p.headTags(c)
	if err != nil {
		return err
	}
	body := fmt.Sprintf(`<script type="module" src="%s"></script>`, html.EscapeString(cfg.PublicPath+entry.Path))

	title := p.Title
	if title == "" {
		title = cfg.Title
	}
	doc := baseURLTag.ReplaceAll(template, []byte(cfg.PublicPath))
	doc = titleTag.ReplaceAll(doc, []byte(html.EscapeString(title)))
	doc = inject(doc, head, body)

	return c.Emit(&Output{
		Path:    p.Filename,
		Kind:    KindDocument,
		Content: doc,
		Origin:  OriginGenerated,
	})
}

// entry finds the emitted entry module
func (p *HTML) entry(c *Compilation) (*Output, error) {
	cfg := c.Config
	from := path.Join(filepath.ToSlash(cfg.SourceDir), filepath.ToSlash(cfg.Entry))
	if out, ok := c.OutputFrom(from, KindScript); ok {
		return out, nil
	}
	return nil, errors.Newf(errors.ErrSourceMissing, "entry module %s was not emitted", from).
		WithPath(filepath.Join(cfg.Root, filepath.FromSlash(from)))
}

// headTags renders stylesheet links and the import map
func (p *HTML) headTags(c *Compilation) (string, error) {
	cfg := c.Config
	var b strings.Builder

	if len(cfg.Aliases) > 0 {
		imports := make(map[string]string, len(cfg.Aliases))
		for alias, target := range cfg.Aliases {
			out, ok := c.OutputFrom(path.Clean(filepath.ToSlash(target)), KindScript)
			if !ok {
				return "", errors.Newf(errors.ErrSourceMissing, "alias %s points at %s which was not emitted", alias, target).
					WithDetail("alias", alias)
			}
			imports[alias] = cfg.PublicPath + out.Path
		}
		importMap, err := json.MarshalIndent(map[string]interface{}{"imports": imports}, "    ", "  ")
		if err != nil {
			return "", errors.Wrap(err, errors.ErrInternal, "failed to render import map")
		}
		fmt.Fprintf(&b, "    <script type=\"importmap\">%s</script>\n", importMap)
	}

	var styles []string
	for _, out := range c.Outputs() {
		if out.Kind == KindStyle {
			styles = append(styles, out.Path)
		}
	}
	sort.Strings(styles)
	for _, style := range styles {
		fmt.Fprintf(&b, "    <link rel=\"stylesheet\" href=\"%s\">\n", html.EscapeString(cfg.PublicPath+style))
	}
	return b.String(), nil
}

func (p *HTML) copyPublic(c *Compilation, templatePath string) error {
	publicDir := filepath.Join(c.Config.Root, filepath.FromSlash(c.Config.PublicDir))
	exists, isDir, err := filesystem.Stat(c.FS, publicDir)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to stat %s", c.Config.PublicDir).WithPath(publicDir)
	}
	if !exists || !isDir {
		return nil
	}
	files, err := filesystem.WalkFiles(c.FS, publicDir, nil)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to walk %s", c.Config.PublicDir).WithPath(publicDir)
	}
	for _, f := range files {
		if filepath.Clean(f.Path) == filepath.Clean(templatePath) {
			continue
		}
		if err := c.Emit(&Output{
			Path:   f.Rel,
			Kind:   KindAsset,
			Source: f.Path,
			From:   path.Join(filepath.ToSlash(c.Config.PublicDir), f.Rel),
			Origin: OriginPublic,
		}); err != nil {
			return err
		}
	}
	return nil
}

// inject places head content before </head> and body content before
// </body>, falling back to the end of the document
func inject(doc []byte, head, body string) []byte {
	headAt, bodyAt := -1, -1
	z := nethtml.NewTokenizer(bytes.NewReader(doc))
	offset := 0
	for {
		tt := z.Next()
		if tt == nethtml.ErrorToken {
			break
		}
		raw := len(z.Raw())
		if tt == nethtml.EndTagToken {
			name, _ := z.TagName()
			switch string(name) {
			case "head":
				if headAt < 0 {
					headAt = offset
				}
			case "body":
				bodyAt = offset
			}
		}
		offset += raw
	}

	var out bytes.Buffer
	out.Grow(len(doc) + len(head) + len(body) + 2)
	switch {
	case headAt >= 0 && bodyAt >= 0:
		out.Write(doc[:headAt])
		out.WriteString(head)
		out.Write(doc[headAt:bodyAt])
		out.WriteString("  " + body + "\n  ")
		out.Write(doc[bodyAt:])
	case headAt >= 0:
		out.Write(doc[:headAt])
		out.WriteString(head)
		out.Write(doc[headAt:])
		out.WriteString(body + "\n")
	case bodyAt >= 0:
		out.Write(doc[:bodyAt])
		out.WriteString(head)
		out.WriteString(body + "\n")
		out.Write(doc[bodyAt:])
	default:
		out.Write(doc)
		out.WriteString(head)
		out.WriteString(body + "\n")
	}
	return out.Bytes()
}
