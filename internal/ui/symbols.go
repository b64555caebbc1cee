package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Operation succeeded
	SymbolFail     = "✗" // Operation failed
	SymbolPending  = "○" // Idle, nothing running
	SymbolProgress = "◐" // Connecting or reconnecting
	SymbolLive     = "●" // Stream is live
	SymbolWarning  = "!" // Recoverable problem
	SymbolInfo     = "i" // Informational note
)
