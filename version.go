package main

// Version is bumped per release; Commit and BuildDate are set with -ldflags.
const Version = "1.0.0"

var (
	Commit    = "unknown"
	BuildDate = "unknown"
)
