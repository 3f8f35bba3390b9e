package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// extrasFile is the on-disk shape of a catalog extension file:
//
//	profiles:
//	  - name: Axis
//	    keywords: [axis]
//	    ports: [80, 554]
//	    paths: [/axis-cgi/jpg/image.cgi]
//	    auth_modes: [Digest, Basic]
//	    media_services: [/onvif/media_service]
type extrasFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadExtras reads vendor profiles from a YAML extension file.
func LoadExtras(path string) ([]Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f extrasFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog extras %s: %w", path, err)
	}
	for _, p := range f.Profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("catalog extras %s: profile with empty name", path)
		}
	}
	return f.Profiles, nil
}

// WithExtras builds a new catalog with extension profiles appended after the
// built-in vendors but ahead of the generic fallback, so an extra vendor's
// keywords win over nothing and lose to nothing built-in. The receiver is
// untouched; running acquisitions keep the catalog they started with.
func (c *Catalog) WithExtras(extras []Profile) *Catalog {
	if len(extras) == 0 {
		return c
	}
	merged := make([]Profile, 0, len(c.profiles)+len(extras))
	for _, p := range c.profiles {
		if p.Name == c.generic.Name {
			continue
		}
		merged = append(merged, p)
	}
	merged = append(merged, extras...)
	merged = append(merged, c.generic)
	return New(merged)
}
