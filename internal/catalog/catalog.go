// Package catalog holds the static vendor knowledge that guides probing:
// per-manufacturer port/path/auth conventions keyed by keywords found in a
// device's declared name. The catalog is built once and never mutated; an
// extension file can only produce a brand-new catalog value.
package catalog

import "strings"

// Profile is one vendor's probing conventions. Immutable once loaded.
type Profile struct {
	Name              string   `yaml:"name"`
	Keywords          []string `yaml:"keywords"`
	Ports             []int    `yaml:"ports"`
	Paths             []string `yaml:"paths"`
	AuthModes         []string `yaml:"auth_modes"`
	MediaServicePaths []string `yaml:"media_services"`
}

// Matches reports whether any keyword occurs in the device name,
// case-insensitive, at any position.
func (p Profile) Matches(deviceName string) bool {
	name := strings.ToLower(deviceName)
	for _, kw := range p.Keywords {
		if strings.Contains(name, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Catalog is an ordered list of vendor profiles plus the generic fallback.
// Safe for unsynchronized concurrent reads.
type Catalog struct {
	profiles []Profile
	generic  Profile
}

// New builds a catalog from vendor profiles. The profile named "Generic"
// (or, failing that, the first profile with no keywords) becomes the
// fallback; it stays in iteration order but never matches by keyword.
func New(profiles []Profile) *Catalog {
	c := &Catalog{profiles: profiles}
	for _, p := range profiles {
		if p.Name == genericName {
			c.generic = p
			return c
		}
	}
	for _, p := range profiles {
		if len(p.Keywords) == 0 {
			c.generic = p
			return c
		}
	}
	// No fallback defined at all; synthesize an empty one so Match never fails.
	c.generic = Profile{Name: genericName}
	return c
}

// Match classifies a device by its declared name. Empty or unrecognized
// names fall back to the generic profile. First match in catalog order wins.
func (c *Catalog) Match(deviceName string) Profile {
	if deviceName == "" {
		return c.generic
	}
	for _, p := range c.profiles {
		if p.Matches(deviceName) {
			return p
		}
	}
	return c.generic
}

// Generic returns the fallback profile.
func (c *Catalog) Generic() Profile {
	return c.generic
}

// Profiles returns the catalog contents in order.
func (c *Catalog) Profiles() []Profile {
	return c.profiles
}

// ExpandedPaths returns the profile's snapshot paths followed by the generic
// paths, de-duplicated keeping first occurrence. The generic profile gets no
// self-append.
func (c *Catalog) ExpandedPaths(p Profile) []string {
	if p.Name == c.generic.Name {
		return dedup(p.Paths)
	}
	merged := make([]string, 0, len(p.Paths)+len(c.generic.Paths))
	merged = append(merged, p.Paths...)
	merged = append(merged, c.generic.Paths...)
	return dedup(merged)
}

func dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
