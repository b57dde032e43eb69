// Package ui renders sync runs in the terminal.
//
// [RunProgress] drives a [Job] behind a bubbletea progress view: a spinner with the current [tasks.Phase], a
// progress bar for phases that report a step count and a short log of the albums synced so far. Progress updates
// arrive through the same non-blocking channel the CLI uses in plain mode, wrapped in the [Msg] union.
//
// Pressing q cancels the job's context. The view leaves an empty final frame so callers print results themselves,
// styled with the package palette ([Title], [Success], [Warning], [Failure], [SummaryLine]).
package ui
