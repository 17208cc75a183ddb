// Package executor writes the operations a build produces.
//
// Operations are plain records (create a directory, write a file, copy a
// file). Two executors consume them: DirectExecutor writes through an
// afero.Fs and is what tests and dry runs use; SynthfsExecutor batches
// them into a synthfs pipeline against the real filesystem.
//
// Every executor refuses targets outside its root, which during a build is
// the staging directory.
package executor
