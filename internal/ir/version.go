package ir

// Version constants for the IR schema and the pass.
const (
	// IRVersion is the IR schema version. Bump when the printed form or the
	// canonical hash encoding changes.
	IRVersion = "1"

	// PassVersion is the version of the enforce-preconditions pass.
	PassVersion = "0.1.0"
)
