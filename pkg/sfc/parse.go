package sfc

import (
	"bytes"
	"io"
	"strings"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"golang.org/x/net/html"
)

// Block is one top-level section of a component file
type Block struct {
	Type    string
	Content string
	Attrs   map[string]string

	// Line is the 1-based line the content starts on
	Line int
}

// Has reports whether the block carries the attribute, valued or not
func (b *Block) Has(attr string) bool {
	_, ok := b.Attrs[attr]
	return ok
}

// Lang returns the lang attribute, or def when absent
func (b *Block) Lang(def string) string {
	if lang := b.Attrs["lang"]; lang != "" {
		return strings.ToLower(lang)
	}
	return def
}

// Descriptor is a parsed component file
type Descriptor struct {
	Path        string
	Template    *Block
	Script      *Block
	ScriptSetup *Block
	Styles      []*Block

	// Custom holds blocks such as <i18n> that the compiler ignores
	Custom []*Block
}

// Parse splits a component file into its blocks. Block content is kept
// byte-for-byte; only the outer tags are consumed.
func Parse(rel string, src []byte) (*Descriptor, error) {
	desc := &Descriptor{Path: rel}
	z := html.NewTokenizer(bytes.NewReader(src))

	offset := 0
	var open *Block
	openStart := 0
	depth := 0

	for {
		tt := z.Next()
		raw := z.Raw()
		tokenStart := offset
		offset += len(raw)

		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return nil, parseError(rel, src, tokenStart, z.Err().Error())
			}
			if open != nil {
				return nil, parseError(rel, src, openStart, "unclosed <"+open.Type+"> block")
			}
			if desc.Template == nil && desc.Script == nil && desc.ScriptSetup == nil {
				return nil, errors.Newf(errors.ErrComponentParse,
					"%s has neither a <template> nor a <script> block", rel).WithPath(rel)
			}
			return desc, nil

		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if open != nil {
				if tag == open.Type {
					depth++
				}
				continue
			}
			open = &Block{Type: tag, Attrs: readAttrs(z), Line: lineOf(src, offset)}
			openStart = offset
			depth = 1

		case html.SelfClosingTagToken:
			if open != nil {
				continue
			}
			name, _ := z.TagName()
			block := &Block{Type: string(name), Attrs: readAttrs(z), Line: lineOf(src, offset)}
			if err := desc.add(block, src, tokenStart); err != nil {
				return nil, err
			}

		case html.EndTagToken:
			if open == nil {
				continue
			}
			name, _ := z.TagName()
			if string(name) != open.Type {
				continue
			}
			depth--
			if depth > 0 {
				continue
			}
			open.Content = string(src[openStart:tokenStart])
			if err := desc.add(open, src, openStart); err != nil {
				return nil, err
			}
			open = nil
		}
	}
}

func (d *Descriptor) add(block *Block, src []byte, at int) error {
	switch block.Type {
	case "template":
		if d.Template != nil {
			return parseError(d.Path, src, at, "more than one <template> block")
		}
		d.Template = block
	case "script":
		if block.Has("setup") {
			if d.ScriptSetup != nil {
				return parseError(d.Path, src, at, "more than one <script setup> block")
			}
			d.ScriptSetup = block
			return nil
		}
		if d.Script != nil {
			return parseError(d.Path, src, at, "more than one <script> block")
		}
		d.Script = block
	case "style":
		d.Styles = append(d.Styles, block)
	default:
		d.Custom = append(d.Custom, block)
	}
	return nil
}

func readAttrs(z *html.Tokenizer) map[string]string {
	attrs := make(map[string]string)
	for {
		key, val, more := z.TagAttr()
		if len(key) > 0 {
			attrs[string(key)] = string(val)
		}
		if !more {
			return attrs
		}
	}
}

func lineOf(src []byte, offset int) int {
	if offset > len(src) {
		offset = len(src)
	}
	return bytes.Count(src[:offset], []byte("\n")) + 1
}

func parseError(rel string, src []byte, offset int, msg string) error {
	line := lineOf(src, offset)
	return errors.Newf(errors.ErrComponentParse, "%s:%d: %s", rel, line, msg).
		WithPath(rel).
		WithDetail("line", line)
}
