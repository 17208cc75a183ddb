// Package transform holds the tools that transform rules invoke.
//
// Tools are looked up by name in an ordered registry. The built-in tools are
// "esbuild", which lowers JavaScript, TypeScript and CSS syntax to the
// target environment, and "passthrough".
//
// The Engine chains the tools of every rule applying to a file and keeps an
// LRU cache keyed by content hash, tool, path, options and target.
package transform
