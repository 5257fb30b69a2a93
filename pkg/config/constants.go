package config

import "time"

// Default values and limits for rgrun
const (
	// Engine
	DefaultExecutable      = "rg"
	DefaultNoMatchExitCode = 1                // rg exits 1 when nothing matched
	DefaultScanBufferSize  = 10 * 1024 * 1024 // 10MB - maximum length of one output line
	MinEngineVersion       = ">= 11.0.0"      // first release with --json

	// Safe defaults applied with --safe-defaults
	DefaultMaxDepth    = 15
	DefaultMaxFileSize = 50 * 1024 * 1024 // 50MB
	DefaultMaxCount    = 100              // matches per file

	// Output
	DefaultFormat     = "text"
	DefaultColor      = "auto"
	DefaultMaxColumns = 0 // unlimited

	// History
	DefaultHistoryPath  = "./rgrun-history.db"
	DefaultHistoryLimit = 20

	// Sandbox container
	DefaultSandboxImage   = "rgrun-sandbox:latest"
	DefaultSandboxMemory  = "512m"
	DefaultSandboxCPUs    = 1.0
	DefaultSandboxTimeout = 60 * time.Second
	SandboxWorkdir        = "/workspace"
)

// Allowed values for enumerated settings
var (
	Formats    = []string{"text", "json", "yaml"}
	ColorModes = []string{"auto", "always", "never"}
	SortKeys   = []string{"none", "path", "modified", "accessed", "created"}
)
