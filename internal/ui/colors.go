// Package ui holds the ANSI styling helpers the commands print with.
package ui

const (
	reset = "\033[0m"
	bold  = "\033[1m"
	dim   = "\033[2m"

	green  = "\033[32m"
	yellow = "\033[33m"
	red    = "\033[31m"
)

// Bold emphasizes a name or heading.
func Bold(s string) string { return bold + s + reset }

// Success styles a completed-action line.
func Success(s string) string { return green + s + reset }

// Info styles a secondary hint line.
func Info(s string) string { return dim + yellow + s + reset }

// Error styles a failure line.
func Error(s string) string { return red + s + reset }
