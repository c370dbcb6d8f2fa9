package config

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Build metadata, set with -ldflags "-X savepath/internal/config.Version=...".
var (
	Version = "v0.1.0-dev"
	Commit  = "none"
	Date    = "unknown"
)

// CheckMinVersion fails when the config demands a newer binary than current.
// Unparseable current versions (local builds) are not gated.
func CheckMinVersion(min, current string) error {
	if min == "" {
		return nil
	}
	want := normalizeSemver(min)
	if want == "" {
		return fmt.Errorf("CFG_MIN_VERSION: invalid version %q", min)
	}
	have := normalizeSemver(current)
	if have == "" {
		return nil
	}
	if semver.Compare(have, want) < 0 {
		return fmt.Errorf("CFG_MIN_VERSION: config requires savepath %s or newer, running %s", want, have)
	}
	return nil
}

func normalizeSemver(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}
