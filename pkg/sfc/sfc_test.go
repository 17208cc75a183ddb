// Test Type: Unit Test
// Description: Tests for component parsing, compilation and style scoping

package sfc_test

import (
	"strings"
	"testing"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/sfc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const viewerComponent = `<template>
  <div class="viewer">
    <template v-if="loading"><span>Loading</span></template>
    <canvas ref="page"/>
  </div>
</template>

<script>
import * as pdfjs from 'pdfjs-dist'
export default {
  name: 'PdfViewer',
  props: { src: String },
}
</script>

<style scoped>
.viewer { overflow: auto; }
.viewer canvas, .viewer::after { display: block; }
@media print { .viewer { overflow: visible; } }
@keyframes spin { from { opacity: 0; } to { opacity: 1; } }
</style>
<style>
body { margin: 0; }
</style>
`

func TestParse(t *testing.T) {
	desc, err := sfc.Parse("src/PdfViewer.vue", []byte(viewerComponent))
	require.NoError(t, err)

	require.NotNil(t, desc.Template)
	assert.Contains(t, desc.Template.Content, `<template v-if="loading">`, "nested templates stay inside")
	assert.Contains(t, desc.Template.Content, `<canvas ref="page"/>`)
	assert.Equal(t, 1, desc.Template.Line)

	require.NotNil(t, desc.Script)
	assert.Contains(t, desc.Script.Content, "export default")
	assert.Equal(t, 8, desc.Script.Line)
	assert.Nil(t, desc.ScriptSetup)

	require.Len(t, desc.Styles, 2)
	assert.True(t, desc.Styles[0].Has("scoped"))
	assert.False(t, desc.Styles[1].Has("scoped"))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"unclosed_template", "<template>\n<div></div>\n", 1},
		{"two_scripts", "<script>a</script>\n<script>b</script>", 2},
		{"two_templates", "<template>a</template>\n\n<template>b</template>", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sfc.Parse("src/Bad.vue", []byte(tt.src))
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrComponentParse))
			assert.Equal(t, errors.CategoryTransform, errors.CategoryOf(err))
			assert.Equal(t, "src/Bad.vue", errors.PathOf(err))
			assert.Equal(t, tt.line, errors.GetErrorDetails(err)["line"])
		})
	}

	t.Run("no_template_nor_script", func(t *testing.T) {
		_, err := sfc.Parse("src/Empty.vue", []byte("<style>a{}</style>"))
		assert.True(t, errors.IsErrorCode(err, errors.ErrComponentParse))
	})
}

func TestCompile(t *testing.T) {
	desc, err := sfc.Parse("src/PdfViewer.vue", []byte(viewerComponent))
	require.NoError(t, err)

	res, err := sfc.Compile(desc, sfc.Options{})
	require.NoError(t, err)

	script := string(res.Script)
	scope := sfc.ScopeID("src/PdfViewer.vue")
	assert.Equal(t, scope, res.ScopeID)
	assert.Equal(t, "js", res.Lang)
	assert.Contains(t, script, "import * as pdfjs from 'pdfjs-dist'")
	assert.Contains(t, script, "const __sfc__ = {")
	assert.Contains(t, script, "__sfc__.template = ")
	assert.Contains(t, script, `__sfc__.__scopeId = "`+scope+`"`)
	assert.True(t, strings.HasSuffix(script, "export default __sfc__;\n"))
	assert.NotContains(t, script, "__file")
	assert.Equal(t, 1, strings.Count(script, "export default"))

	css := string(res.CSS)
	attr := "[" + scope + "]"
	assert.Contains(t, css, ".viewer"+attr+" {")
	assert.Contains(t, css, ".viewer canvas"+attr+", .viewer"+attr+"::after {")
	assert.Contains(t, css, "@media print { .viewer"+attr+" {")
	assert.Contains(t, css, "@keyframes spin { from { opacity: 0; }", "keyframe selectors are not scoped")
	assert.Contains(t, css, "body { margin: 0; }", "unscoped block is untouched")

	t.Run("development_keeps_file_name", func(t *testing.T) {
		res, err := sfc.Compile(desc, sfc.Options{Development: true})
		require.NoError(t, err)
		assert.Contains(t, string(res.Script), `__sfc__.__file = "src/PdfViewer.vue"`)
	})
}

func TestCompile_TemplateScoping(t *testing.T) {
	src := `<template><div :class="{ a: x > 1 }"><img src="a.png" /><slot></slot></div></template>
<style scoped>div{}</style>`
	desc, err := sfc.Parse("src/A.vue", []byte(src))
	require.NoError(t, err)
	res, err := sfc.Compile(desc, sfc.Options{})
	require.NoError(t, err)

	scope := res.ScopeID
	script := string(res.Script)
	assert.Contains(t, script, `<div :class=\"{ a: x > 1 }\" `+scope+`>`)
	assert.Contains(t, script, `<img src=\"a.png\" `+scope+`/>`)
	assert.Contains(t, script, `<slot>`, "slots carry no attribute")
}

func TestCompile_ScriptVariants(t *testing.T) {
	t.Run("template_only", func(t *testing.T) {
		desc, err := sfc.Parse("src/T.vue", []byte("<template><p>hi</p></template>"))
		require.NoError(t, err)
		res, err := sfc.Compile(desc, sfc.Options{})
		require.NoError(t, err)
		assert.Contains(t, string(res.Script), "const __sfc__ = {};")
		assert.Empty(t, res.CSS)
		assert.Empty(t, res.ScopeID)
	})

	t.Run("typescript", func(t *testing.T) {
		desc, err := sfc.Parse("src/T.vue", []byte(`<script lang="ts">export default { n: 1 as number }</script>`))
		require.NoError(t, err)
		res, err := sfc.Compile(desc, sfc.Options{})
		require.NoError(t, err)
		assert.Equal(t, "ts", res.Lang)
	})

	t.Run("script_setup", func(t *testing.T) {
		src := `<script setup>
import { ref } from 'vue'
import Toolbar from './Toolbar.vue'
const props = defineProps({ src: String })
const page = ref(1)
function next() { page.value++ }
</script>
<template><Toolbar @next="next"/>{{ page }}</template>`
		desc, err := sfc.Parse("src/S.vue", []byte(src))
		require.NoError(t, err)
		res, err := sfc.Compile(desc, sfc.Options{})
		require.NoError(t, err)

		script := string(res.Script)
		assert.Contains(t, script, "import { ref } from 'vue';")
		assert.Contains(t, script, "__sfc__.props = { src: String };")
		assert.Contains(t, script, "const props = __props")
		assert.Contains(t, script, "return { Toolbar, next, page, props, ref };")
	})

	t.Run("script_setup_strips_statement_exports_only", func(t *testing.T) {
		src := `<script setup>
export const label = 'export the page'
// export helpers
  export function zoom() {}
</script>
<template><p>{{ label }}</p></template>`
		desc, err := sfc.Parse("src/Label.vue", []byte(src))
		require.NoError(t, err)
		res, err := sfc.Compile(desc, sfc.Options{})
		require.NoError(t, err)

		script := string(res.Script)
		assert.Contains(t, script, "const label = 'export the page'")
		assert.Contains(t, script, "// export helpers")
		assert.Contains(t, script, "  function zoom() {}")
		assert.NotContains(t, script, "export const")
		assert.NotContains(t, script, "export function")
	})

	t.Run("unsupported_languages", func(t *testing.T) {
		for _, src := range []string{
			`<script lang="coffee">x</script>`,
			`<template><p/></template><style lang="scss">a{}</style>`,
		} {
			desc, err := sfc.Parse("src/X.vue", []byte(src))
			require.NoError(t, err)
			_, err = sfc.Compile(desc, sfc.Options{})
			assert.True(t, errors.IsErrorCode(err, errors.ErrComponentParse), src)
		}
	})
}
