// Package media discovers a device's media profiles and resolves playable
// URLs for them, walking the vendor's candidate media-service mounts until
// one answers.
package media

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/technosupport/ts-snapscout/internal/catalog"
	"github.com/technosupport/ts-snapscout/internal/device"
	"github.com/technosupport/ts-snapscout/internal/soap"
)

// RTSPPort is the standard streaming port injected when a device returns a
// bare path or a URL without an explicit port.
const RTSPPort = 554

type Resolver struct {
	SOAP *soap.Client
}

func NewResolver(client *soap.Client) *Resolver {
	return &Resolver{SOAP: client}
}

// ListProfiles asks each candidate media-service mount for the device's
// profiles. First mount that yields at least one profile wins; the rest are
// not tried. An empty result means protocol discovery failed on every mount.
func (r *Resolver) ListProfiles(ctx context.Context, dev device.Device, prof catalog.Profile, cred device.Credential) []soap.MediaProfile {
	for _, svcPath := range prof.MediaServicePaths {
		endpoint := dev.BaseURL() + svcPath
		resp := r.SOAP.Do(ctx, endpoint, "GetProfiles", soap.GetProfilesBody(), cred)
		if resp == nil {
			continue
		}
		if profiles := resp.Profiles(); len(profiles) > 0 {
			log.Printf("[media] %s: %d profile(s) via %s", dev.Address, len(profiles), svcPath)
			return profiles
		}
	}
	return nil
}

// ResolveStreamURI resolves and normalizes the RTSP URL for a profile token.
func (r *Resolver) ResolveStreamURI(ctx context.Context, dev device.Device, prof catalog.Profile, cred device.Credential, token string) (string, bool) {
	raw, ok := r.resolveURI(ctx, dev, prof, cred, "GetStreamUri", soap.GetStreamURIBody(token))
	if !ok {
		return "", false
	}
	return NormalizeStreamURL(raw, dev.Host()), true
}

// ResolveSnapshotURI resolves the still-image URL a profile advertises.
// Relative URIs are qualified against the device base.
func (r *Resolver) ResolveSnapshotURI(ctx context.Context, dev device.Device, prof catalog.Profile, cred device.Credential, token string) (string, bool) {
	raw, ok := r.resolveURI(ctx, dev, prof, cred, "GetSnapshotUri", soap.GetSnapshotURIBody(token))
	if !ok {
		return "", false
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw, true
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return dev.BaseURL() + raw, true
}

func (r *Resolver) resolveURI(ctx context.Context, dev device.Device, prof catalog.Profile, cred device.Credential, operation, body string) (string, bool) {
	for _, svcPath := range prof.MediaServicePaths {
		endpoint := dev.BaseURL() + svcPath
		resp := r.SOAP.Do(ctx, endpoint, operation, body, cred)
		if resp == nil {
			continue
		}
		if uri, ok := resp.URI(); ok && uri != "" {
			return uri, true
		}
	}
	return "", false
}

// NormalizeStreamURL makes a device-returned stream URI fully qualified.
// A bare path becomes rtsp://host:554/path; an rtsp URL without an explicit
// port gets 554 injected; anything already explicit passes through.
func NormalizeStreamURL(raw, host string) string {
	if !strings.HasPrefix(raw, "rtsp://") {
		if !strings.HasPrefix(raw, "/") {
			raw = "/" + raw
		}
		return fmt.Sprintf("rtsp://%s:%d%s", host, RTSPPort, raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Port() == "" {
		u.Host = fmt.Sprintf("%s:%d", u.Hostname(), RTSPPort)
	}
	return u.String()
}
