package model

import "time"

// Shared defaults used by the server, the CLI and the query engine.
const (
	DefaultLimit        = 100
	MaxLimit            = 1000
	DefaultSessionLimit = 500
	DefaultWindow       = time.Hour
	DefaultProjectName  = "recall"
)
