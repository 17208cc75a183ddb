// Package plugins implements the ordered plugin registration list.
//
// Plugins are applied in list order to a Compilation. A plugin may register
// a loader for a file extension (the vue plugin claims ".vue") and emit
// hooks that run, in the same order, once every module has been emitted.
// Emit hooks add outputs (copy, html) or rewrite them (define).
//
// Outputs are kept in memory until the pipeline hands them to an executor,
// so a failing hook leaves nothing on disk.
package plugins
