// Package sfc parses and compiles single-file UI components (.vue files).
//
// Parse splits a file into its <template>, <script>, <script setup> and
// <style> blocks with the golang.org/x/net/html tokenizer. Compile emits a
// script module whose default export is the component options object with
// the template attached as a string, and a stylesheet. Scoped styles get a
// data-v-<hash> attribute selector derived from the file path, and every
// element of the template carries the same attribute.
//
// Rendering functions are not generated: the template is compiled by the
// runtime build of the UI library in the browser.
package sfc
