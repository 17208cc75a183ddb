// Package registry provides a small, ordered, thread-safe name registry used
// for transform tools and pipeline plugins.
package registry
