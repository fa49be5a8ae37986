// Package version holds build-time version metadata for predicateeval.
package version

// Version is the predicateeval release version. Overridden at build
// time via -ldflags "-X github.com/svc-virt/predicate-engine/pkg/version.Version=...".
var Version = "dev"

// SpecVersion names the predicate-matching behavior this build
// implements, independent of the binary's own release version.
var SpecVersion = "1.0"
