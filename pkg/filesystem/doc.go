// Package filesystem provides the afero filesystems the pipeline reads and
// writes through, plus tree helpers shared by the scanner, the copy plugin
// and the verifier.
package filesystem
