// Package testutil provides fixtures for testing sfcbuild components.
//
// Key components:
//   - TestProject: a project tree on an in-memory or on-disk filesystem
//   - ViewerPipeline: the configuration of a small PDF viewer build, with
//     its character maps mirrored next to the bundle
//
// Usage guidelines:
//   - Prefer NewMemoryProject; use NewDiskProject only for code that goes
//     through the real filesystem, such as the command line
//   - All test data should be defined inline, not in external files
package testutil
