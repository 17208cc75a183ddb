// Package rules decides which transform rules apply to which files.
//
// A rule has a regular expression test over slash-separated,
// project-relative paths and a list of include scopes. A scope is either a
// directory prefix ("node_modules/pdfjs-dist") or a doublestar glob
// ("node_modules/**/esm"). A file is transformed by a rule only when it
// matches the test and lies under one of the scopes; exclude scopes remove
// files again. Rules without include scopes cover the source directory.
//
// Every applicable rule applies, in declaration order, so rules chain.
//
// The Scanner walks the source directory and the base directory of every
// include scope. Paths listed in .sfcbuildignore (dockerignore syntax) and
// the output directory are never scanned.
package rules
