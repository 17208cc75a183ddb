// Package types defines the configuration records shared by every stage of
// a build: the pipeline itself, transform rules, plugin registrations, copy
// patterns and the target descriptor.
package types
