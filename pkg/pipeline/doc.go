// Package pipeline runs a build: it validates the configuration, scans the
// inputs, loads and transforms modules, lets plugins post-process the
// outputs and writes the bundle.
//
// The output directory is write-once per build. Outputs are staged in a
// sibling directory and swapped into place only after every file and the
// asset manifest have been written, so a failed build never leaves a
// directory that looks complete. When the staging directory cannot be
// removed it is marked with an IncompleteMarker file.
//
// Error categories map to exit codes: configuration errors are detected
// before anything is written, resource errors cover missing inputs and
// failed writes, transform errors carry the offending path.
package pipeline
