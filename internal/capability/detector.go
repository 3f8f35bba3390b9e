// Package capability mines GetCapabilities responses for hints: which
// features the device claims, and which snapshot endpoints it advertises.
// Everything here is best-effort enrichment; a failure degrades the caller
// to the static catalog, never aborts it.
package capability

import (
	"context"
	"strings"

	"github.com/technosupport/ts-snapscout/internal/catalog"
	"github.com/technosupport/ts-snapscout/internal/device"
	"github.com/technosupport/ts-snapscout/internal/soap"
)

// wellKnownSnapshotPaths are appended to whatever the device advertises.
// Devices that support HTTP snapshots but do not say so usually mount one
// of these.
var wellKnownSnapshotPaths = []string{
	"/onvif/snapshot",
	"/onvif/media/snapshot",
	"/onvif-http/snapshot",
	"/media/snapshot",
	"/snapshot",
}

// Query posts GetCapabilities to each media-service mount until one answers.
// A nil return means no mount was viable; callers carry on without hints.
func Query(ctx context.Context, client *soap.Client, dev device.Device, prof catalog.Profile, cred device.Credential) *soap.Response {
	for _, svcPath := range prof.MediaServicePaths {
		if resp := client.Do(ctx, dev.BaseURL()+svcPath, "GetCapabilities", soap.GetCapabilitiesBody(), cred); resp != nil {
			return resp
		}
	}
	return nil
}

// Detect infers supported features from element presence. Presence only:
// a device that lists a SnapshotUri element claims snapshot support, whether
// or not the claim is true.
func Detect(resp *soap.Response) map[string]bool {
	caps := map[string]bool{}
	if resp == nil {
		return caps
	}
	caps["SupportsSnapshot"] = resp.Has("SnapshotUri")
	caps["SupportsJPEG"] = resp.Has("JPEG")
	caps["SupportsH264"] = resp.Has("H264")
	caps["SupportsImaging"] = resp.Has("Imaging")
	return caps
}

// CandidateEndpoints unions explicitly advertised snapshot URIs (relative
// ones qualified against the device base URL) with the well-known fallback
// paths. Order: advertised first, then fallbacks; duplicates dropped.
func CandidateEndpoints(dev device.Device, resp *soap.Response) []string {
	base := dev.BaseURL()
	seen := map[string]struct{}{}
	var out []string
	add := func(u string) {
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}

	if resp != nil {
		for _, elem := range resp.FindElements("SnapshotUri") {
			uri := textOfURI(elem)
			if uri == "" {
				continue
			}
			if strings.HasPrefix(uri, "http") {
				add(uri)
			} else {
				if !strings.HasPrefix(uri, "/") {
					uri = "/" + uri
				}
				add(base + uri)
			}
		}
	}
	for _, p := range wellKnownSnapshotPaths {
		add(base + p)
	}
	return out
}

// textOfURI digs the Uri text out of an advertised SnapshotUri element,
// which may be the URI itself or a wrapper with a Uri child.
func textOfURI(elem interface{}) string {
	if s, ok := elem.(string); ok {
		return s
	}
	if m, ok := elem.(map[string]interface{}); ok {
		if sub, ok := soap.SearchText(m, "Uri"); ok {
			return sub
		}
		if s, ok := m["#text"].(string); ok {
			return s
		}
	}
	return ""
}
