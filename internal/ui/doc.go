// Package ui renders command output for the terminal with lipgloss.
//
// [Styles] is the shared palette: titles, success and error lines, warnings and help text.
// [Table] lays out rows of strings with a bold header, and [KeyValues] aligns labelled fields.
// Rendering degrades to plain text when the output is not a terminal.
package ui
