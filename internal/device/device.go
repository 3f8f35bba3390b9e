package device

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// AuthScheme names the HTTP authentication mechanism a credential is meant for.
type AuthScheme string

const (
	SchemeBasic  AuthScheme = "Basic"
	SchemeDigest AuthScheme = "Digest"
)

// Credential is a (username, password, scheme) tuple produced by the
// credential-testing collaborator. Opaque here beyond scheme selection.
type Credential struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Scheme   AuthScheme `json:"scheme"`
}

// Device describes one network video device as handed over by discovery.
// Read-only for the acquisition pipeline; never persisted or mutated.
type Device struct {
	// Address is the host identifier (IP or hostname, optionally host:port).
	Address string `json:"address"`
	// Name is the declared vendor/model string. Untrusted, possibly empty.
	Name string `json:"name"`
	// CandidateURLs are base URLs already known to expose ONVIF, in order.
	CandidateURLs []string `json:"candidate_urls"`
	// Credentials to try, in order. First credential is tried first.
	Credentials []Credential `json:"credentials"`
}

// Host returns the bare host (no port) to build probe URLs against.
func (d Device) Host() string {
	if u := d.baseURL(); u != nil && u.Hostname() != "" {
		return u.Hostname()
	}
	if host, _, err := net.SplitHostPort(d.Address); err == nil {
		return host
	}
	return d.Address
}

// Port returns the port the device was discovered on, or 80.
func (d Device) Port() int {
	if u := d.baseURL(); u != nil && u.Port() != "" {
		if p, err := strconv.Atoi(u.Port()); err == nil {
			return p
		}
	}
	if _, portStr, err := net.SplitHostPort(d.Address); err == nil {
		if p, err := strconv.Atoi(portStr); err == nil {
			return p
		}
	}
	return 80
}

// Scheme returns the URL scheme probes should use, defaulting to http.
func (d Device) Scheme() string {
	if u := d.baseURL(); u != nil && u.Scheme != "" {
		return u.Scheme
	}
	return "http"
}

// BaseURL returns scheme://host:port with no path.
func (d Device) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", d.Scheme(), d.Host(), d.Port())
}

func (d Device) baseURL() *url.URL {
	if len(d.CandidateURLs) == 0 {
		return nil
	}
	raw := d.CandidateURLs[0]
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return u
}
