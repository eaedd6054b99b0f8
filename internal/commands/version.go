package commands

// GetCurrentVersion is set by main so commands can report the build
// version without importing main
var GetCurrentVersion func() string
