package version

// Version is overridden at build time via -ldflags "-X github.com/netxfw/netxmap/internal/version.Version=...".
// Version 在构建时通过 -ldflags 覆盖。
var Version = "dev"

// Commit is the git revision the binary was built from.
var Commit = "unknown"
