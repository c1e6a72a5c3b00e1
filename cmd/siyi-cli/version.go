package main

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
)
