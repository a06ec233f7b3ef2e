package ledger

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Version is the ledger's upgrade state. Transitions only move forward, one
// step at a time.
type Version int

const (
	Version_Uninitialized Version = iota
	Version_Base
	Version_FeeAware
)

var versionStrings = map[Version]string{
	Version_Uninitialized: "",
	Version_Base:          "1.0.0",
	Version_FeeAware:      "2.0.0",
}

func (v Version) String() string {
	return versionStrings[v]
}

func ParseVersion(s string) (Version, error) {
	if s == "" {
		return Version_Uninitialized, nil
	}
	canonical := semver.Canonical("v" + s)
	if canonical == "" {
		return Version_Uninitialized, fmt.Errorf("invalid version '%s'", s)
	}
	for v, str := range versionStrings {
		if str != "" && semver.Compare(canonical, "v"+str) == 0 {
			return v, nil
		}
	}
	return Version_Uninitialized, fmt.Errorf("unsupported version '%s'", s)
}

// Transition validates a move from v to target. Re-entering a state that was
// already visited fails with ErrAlreadyInitialized; skipping a state fails
// with ErrNotInitialized.
func (v Version) Transition(target Version) (Version, error) {
	if target <= v {
		return v, ErrAlreadyInitialized
	}
	if target != v+1 {
		return v, ErrNotInitialized
	}
	if v != Version_Uninitialized && semver.Compare("v"+target.String(), "v"+v.String()) <= 0 {
		return v, fmt.Errorf("version %s does not follow %s", target, v)
	}
	return target, nil
}
