// Package version centralizes the versions of the gateway components whose
// output is cached.
//
// The versions are part of every cache key. Bumping one of them makes every
// entry written by the previous logic unreachable, so a fixed bug in an
// action or a builtin function never serves stale results.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComponentVersions holds the version strings for the cached components.
// Increment a version here before deploying a change to that component.
var ComponentVersions = struct {
	// Actions covers the declared action executors (rest, templates, emit).
	Actions string

	// Tools covers the builtin functions exposed through the module registry.
	Tools string

	// Manifest covers how manifests are interpreted (placeholders, result_form).
	Manifest string
}{
	Actions:  "v1.0",
	Tools:    "v1.0",
	Manifest: "v1.0",
}

// Hash returns the hex SHA256 of s.
func Hash(s string) string {
	hasher := sha256.New()
	hasher.Write([]byte(s))
	return hex.EncodeToString(hasher.Sum(nil))
}

// GenerateVersionedCacheKey creates a version-aware cache key for a payload,
// typically a function name and its canonical arguments.
//
// Example output: "actioncache:a1b2c3d4...:av1.0_tv1.0_mv1.0"
func GenerateVersionedCacheKey(prefix, payload string) string {
	versionString := fmt.Sprintf("av%s_tv%s_mv%s",
		ComponentVersions.Actions,
		ComponentVersions.Tools,
		ComponentVersions.Manifest,
	)
	return fmt.Sprintf("%s:%s:%s", prefix, Hash(payload), versionString)
}
