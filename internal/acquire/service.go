// Package acquire sequences the snapshot pipeline: direct HTTP probing
// first, then protocol-negotiated snapshot URIs, then stream capture via
// the external frame extractor. Cheapest and most reliable method first;
// each stage only runs when the previous one exhausted its options.
package acquire

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/technosupport/ts-snapscout/internal/catalog"
	"github.com/technosupport/ts-snapscout/internal/device"
	"github.com/technosupport/ts-snapscout/internal/events"
	"github.com/technosupport/ts-snapscout/internal/probe"
	"github.com/technosupport/ts-snapscout/internal/soap"
	"github.com/technosupport/ts-snapscout/internal/urlcache"
)

// Prober is the direct-fetch stage. *probe.Prober satisfies it.
type Prober interface {
	Probe(ctx context.Context, urls []string, cred device.Credential) (*probe.Hit, probe.Stats)
	TryURL(ctx context.Context, url string, cred device.Credential) (*probe.Hit, bool)
}

// Resolver is the protocol-negotiation stage. *media.Resolver satisfies it.
type Resolver interface {
	ListProfiles(ctx context.Context, dev device.Device, prof catalog.Profile, cred device.Credential) []soap.MediaProfile
	ResolveStreamURI(ctx context.Context, dev device.Device, prof catalog.Profile, cred device.Credential, token string) (string, bool)
	ResolveSnapshotURI(ctx context.Context, dev device.Device, prof catalog.Profile, cred device.Credential, token string) (string, bool)
}

// CapabilityFunc returns extra candidate snapshot URLs gleaned from a
// capabilities query. Best effort; an empty slice is a fine answer.
type CapabilityFunc func(ctx context.Context, dev device.Device, prof catalog.Profile, cred device.Credential) []string

// Observer receives the final verdict of each acquisition. Satisfied by
// metrics.Collector.
type Observer interface {
	ObserveAcquisition(stage string, success bool, elapsed time.Duration)
}

// Service runs the acquisition state machine. Within one Acquire call all
// network operations are strictly sequential; cameras are too
// resource-constrained to probe in parallel without false negatives.
type Service struct {
	catalog   atomic.Pointer[catalog.Catalog]
	Prober    Prober
	Resolver  Resolver
	Extractor FrameExtractor

	// Optional enrichments; nil disables each.
	Capabilities CapabilityFunc
	Cache        urlcache.Store
	Events       events.Publisher
	Observer     Observer

	// SnapshotDir receives artifacts; empty means artifacts go to the
	// system temp dir and only stream captures touch disk.
	SnapshotDir string

	now func() time.Time
}

func NewService(cat *catalog.Catalog, p Prober, r Resolver, e FrameExtractor) *Service {
	s := &Service{Prober: p, Resolver: r, Extractor: e, now: time.Now}
	s.catalog.Store(cat)
	return s
}

// Catalog returns the catalog acquisitions currently start from.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog.Load()
}

// SetCatalog swaps in a new catalog. Safe against concurrent Acquire calls;
// a running acquisition keeps the catalog it started with.
func (s *Service) SetCatalog(cat *catalog.Catalog) {
	s.catalog.Store(cat)
}

// Acquire runs the full fallback chain for one device and returns the final
// result. It never panics on device misbehavior and terminates within the
// bounded retry/timeout budget of its parts; callers enforce an overall
// deadline through ctx.
func (s *Service) Acquire(ctx context.Context, dev device.Device) Result {
	start := s.timeNow()
	res := s.run(ctx, dev)
	elapsed := time.Since(start)

	if s.Observer != nil {
		s.Observer.ObserveAcquisition(string(res.Stage), res.OK, elapsed)
	}
	if s.Events != nil {
		ev := events.Event{
			EventID:    uuid.New().String(),
			Address:    dev.Address,
			Success:    res.OK,
			Stage:      string(res.Stage),
			Source:     res.Source,
			Reason:     string(res.Reason),
			OccurredAt: s.timeNow(),
		}
		if err := s.Events.Publish(ev); err != nil {
			log.Printf("[acquire] event publish: %v", err)
		}
	}
	return res
}

func (s *Service) run(ctx context.Context, dev device.Device) Result {
	// Init: nothing works without a credential.
	if len(dev.Credentials) == 0 {
		return failure("", ReasonNoCredentials)
	}

	cat := s.Catalog()
	prof := cat.Match(dev.Name)
	log.Printf("[acquire] %s: using %s profile", dev.Address, prof.Name)

	// A remembered working URL short-circuits the whole grid.
	if s.Cache != nil {
		if cached, ok := s.Cache.Get(ctx, dev.Address); ok {
			if hit, ok := s.Prober.TryURL(ctx, cached, dev.Credentials[0]); ok {
				return s.finish(ctx, dev, StageDirectProbe, hit)
			}
		}
	}

	// DirectProbe: port×path sweep. Credentials advance only on blanket
	// 401; a content-validation failure under one credential is final for
	// that combination.
	ports := probe.PortSequence(dev.Port(), prof.Ports)
	paths := cat.ExpandedPaths(prof)
	urls := probe.URLs(dev, ports, paths)

	cred := dev.Credentials[0]
	var lastStats probe.Stats
	allRejectedAuth := true
	for _, c := range dev.Credentials {
		hit, stats := s.Prober.Probe(ctx, urls, c)
		if hit != nil {
			return s.finish(ctx, dev, StageDirectProbe, hit)
		}
		lastStats = stats
		if !stats.AllUnauthorized() {
			cred = c
			allRejectedAuth = false
			break
		}
	}

	// Optional capability enrichment: one extra pass over advertised
	// endpoints. Failures here only mean no extra endpoints.
	if s.Capabilities != nil {
		probed := make(map[string]struct{}, len(urls))
		for _, u := range urls {
			probed[u] = struct{}{}
		}
		for _, u := range s.Capabilities(ctx, dev, prof, cred) {
			if _, dup := probed[u]; dup {
				continue
			}
			if hit, ok := s.Prober.TryURL(ctx, u, cred); ok {
				return s.finish(ctx, dev, StageDirectProbe, hit)
			}
		}
	}

	// ProtocolDiscovery.
	profiles := s.Resolver.ListProfiles(ctx, dev, prof, cred)
	if len(profiles) == 0 {
		switch {
		case allRejectedAuth && lastStats.URLs > 0:
			return failure(StageDirectProbe, ReasonAuthRejected)
		case lastStats.SawValidResponse():
			// Something answered 200 but never with a usable image.
			return failure(StageDirectProbe, ReasonNoValidImage)
		case lastStats.URLs > 0 && lastStats.Transport == lastStats.URLs:
			return failure(StageDirectProbe, ReasonTransport)
		default:
			return failure(StageDirectProbe, ReasonNoMediaProfile)
		}
	}

	// SnapshotURI: the device may advertise exactly where its still image
	// lives; cheaper than spinning up the extractor.
	for _, p := range profiles {
		uri, ok := s.Resolver.ResolveSnapshotURI(ctx, dev, prof, cred, p.Token)
		if !ok {
			continue
		}
		if hit, ok := s.Prober.TryURL(ctx, uri, cred); ok {
			return s.finish(ctx, dev, StageSnapshotURI, hit)
		}
	}

	// StreamCapture: last resort, one frame off the RTSP stream.
	resolvedAny := false
	for _, p := range profiles {
		streamURL, ok := s.Resolver.ResolveStreamURI(ctx, dev, prof, cred, p.Token)
		if !ok {
			continue
		}
		resolvedAny = true
		outPath := s.artifactPath(dev)
		if err := s.Extractor.ExtractFrame(ctx, streamURL, cred, outPath); err != nil {
			log.Printf("[acquire] %s: extraction via %s: %v", dev.Address, p.Token, err)
			continue
		}
		image, err := os.ReadFile(outPath)
		if err != nil || !probe.IsImageSignature(image) {
			// Whatever the extractor wrote, it is not an image we will
			// hand to a caller.
			os.Remove(outPath)
			continue
		}
		return success(StageStreamCapture, streamURL, image, outPath)
	}

	if resolvedAny {
		return failure(StageStreamCapture, ReasonExtractionFailed)
	}
	return failure(StageStreamCapture, ReasonNoStreamURI)
}

// finish records a direct HTTP hit: remembers the URL, writes the artifact
// if a snapshot dir is configured.
func (s *Service) finish(ctx context.Context, dev device.Device, stage Stage, hit *probe.Hit) Result {
	if s.Cache != nil {
		s.Cache.Put(ctx, dev.Address, hit.URL)
	}
	path := ""
	if s.SnapshotDir != "" {
		p := s.artifactPath(dev)
		if err := os.WriteFile(p, hit.Body, 0o644); err != nil {
			log.Printf("[acquire] %s: write artifact: %v", dev.Address, err)
		} else {
			path = p
		}
	}
	return success(stage, hit.URL, hit.Body, path)
}

func (s *Service) artifactPath(dev device.Device) string {
	dir := s.SnapshotDir
	if dir == "" {
		dir = os.TempDir()
	}
	// A uuid segment keeps concurrent captures of the same host within one
	// second from clobbering each other.
	name := fmt.Sprintf("snapshot_%s_%s_%s.jpg",
		dev.Host(), s.timeNow().Format("20060102_150405"), uuid.New().String()[:8])
	return filepath.Join(dir, name)
}

func (s *Service) timeNow() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
