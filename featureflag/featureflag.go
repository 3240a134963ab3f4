package featureflag

import (
	"strings"

	"github.com/aukilabs/tilestream/traverse"
)

// FeatureFlag is a lookup map for features that is enabled or disabled
type FeatureFlag map[Flag]struct{}

// New return a new feature flags initialized with list of flags. Flag names
// are case insensitive.
func New(flags []string) FeatureFlag {
	featureFlag := make(FeatureFlag)
	for _, f := range flags {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		featureFlag[Flag(f)] = struct{}{}
	}
	return featureFlag
}

// IsSet reports whether flag is set in the feature flags.
func (f FeatureFlag) IsSet(flag Flag) bool {
	_, ok := f[flag]
	return ok
}

// IfSet runs function `do ` if flag is set in the feature flags
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if !f.IsSet(flag) {
		return
	}
	do()
}

// IfNotSet runs function `do` if flag is not set in the feature flags
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if f.IsSet(flag) {
		return
	}
	do()
}

// Apply enables the traversal behaviours selected by the feature flags.
// Options that are not flagged are left untouched.
func (f FeatureFlag) Apply(c *traverse.Config) {
	f.IfSet(FlagScheduledTraversal, func() {
		c.Policy = traverse.PolicyScheduled
	})
	f.IfSet(FlagDeferOutsideFrustum, func() {
		c.DeferOutsideFrustum = true
	})
	f.IfSet(FlagFoveatedSSE, func() {
		c.Foveation = true
	})
	f.IfSet(FlagLoadSiblings, func() {
		c.LoadSiblings = true
	})
	f.IfSet(FlagDisplayActiveTiles, func() {
		c.DisplayActiveTiles = true
	})
}
