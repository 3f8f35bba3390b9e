package acquire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/technosupport/ts-snapscout/internal/catalog"
	"github.com/technosupport/ts-snapscout/internal/device"
	"github.com/technosupport/ts-snapscout/internal/probe"
	"github.com/technosupport/ts-snapscout/internal/soap"
)

func jpegBody(size int) []byte {
	b := make([]byte, size)
	copy(b, []byte{0xFF, 0xD8, 0xFF})
	return b
}

func fastProber() *probe.Prober {
	p := probe.New(time.Second)
	p.Policy.MaxAttempts = 1
	return p
}

func deviceFor(srv *httptest.Server, name string) device.Device {
	u, _ := url.Parse(srv.URL)
	return device.Device{
		Address:     u.Host,
		Name:        name,
		Credentials: []device.Credential{{Username: "admin", Password: "pw"}},
	}
}

// fakeResolver scripts the protocol stage.
type fakeResolver struct {
	profiles  []soap.MediaProfile
	snapshots map[string]string
	streams   map[string]string
}

func (f *fakeResolver) ListProfiles(context.Context, device.Device, catalog.Profile, device.Credential) []soap.MediaProfile {
	return f.profiles
}

func (f *fakeResolver) ResolveSnapshotURI(_ context.Context, _ device.Device, _ catalog.Profile, _ device.Credential, token string) (string, bool) {
	u, ok := f.snapshots[token]
	return u, ok
}

func (f *fakeResolver) ResolveStreamURI(_ context.Context, _ device.Device, _ catalog.Profile, _ device.Credential, token string) (string, bool) {
	u, ok := f.streams[token]
	return u, ok
}

// fakeExtractor writes a canned frame instead of invoking ffmpeg.
type fakeExtractor struct {
	frame []byte
	err   error
	calls int
}

func (f *fakeExtractor) ExtractFrame(_ context.Context, _ string, _ device.Credential, outputPath string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, f.frame, 0o644)
}

// stubProber scripts the direct-fetch stage per credential.
type stubProber struct {
	results map[string]struct {
		hit   *probe.Hit
		stats probe.Stats
	}
	credsSeen []string
}

func (s *stubProber) Probe(_ context.Context, urls []string, cred device.Credential) (*probe.Hit, probe.Stats) {
	s.credsSeen = append(s.credsSeen, cred.Username)
	r := s.results[cred.Username]
	return r.hit, r.stats
}

func (s *stubProber) TryURL(context.Context, string, device.Credential) (*probe.Hit, bool) {
	return nil, false
}

func TestAcquireNoCredentials(t *testing.T) {
	svc := NewService(catalog.Builtin(), fastProber(), &fakeResolver{}, &fakeExtractor{})
	res := svc.Acquire(context.Background(), device.Device{Address: "10.0.0.5"})
	if res.OK {
		t.Fatal("acquisition without credentials succeeded")
	}
	if res.Reason != ReasonNoCredentials {
		t.Fatalf("reason = %s", res.Reason)
	}
}

func TestAcquireDirectProbeHikvision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ISAPI/Streaming/channels/101/picture" {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(jpegBody(4000))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	svc := NewService(catalog.Builtin(), fastProber(), &fakeResolver{}, &fakeExtractor{})
	res := svc.Acquire(context.Background(), deviceFor(srv, "Hikvision DS-2CD2043"))

	if !res.OK {
		t.Fatalf("acquisition failed: stage=%s reason=%s", res.Stage, res.Reason)
	}
	if res.Stage != StageDirectProbe {
		t.Fatalf("stage = %s", res.Stage)
	}
	if !strings.Contains(res.Source, "/ISAPI/Streaming/channels/101/picture") {
		t.Fatalf("source = %s", res.Source)
	}
	if !probe.IsImageSignature(res.Image) {
		t.Fatal("image lacks signature")
	}
}

func TestAcquireFallsBackToSnapshotURI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/advertised/still" {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(jpegBody(4000))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	resolver := &fakeResolver{
		profiles:  []soap.MediaProfile{{Token: "Profile_1", Name: "Main"}},
		snapshots: map[string]string{"Profile_1": srv.URL + "/advertised/still"},
	}
	// Grid probing always misses: only the advertised URI works.
	svc := NewService(catalog.Builtin(), fastProber(), resolver, &fakeExtractor{})
	dev := deviceFor(srv, "")
	dev.Name = "Unmatched Vendor"

	res := svc.Acquire(context.Background(), dev)
	if !res.OK {
		t.Fatalf("acquisition failed: stage=%s reason=%s", res.Stage, res.Reason)
	}
	if res.Stage != StageSnapshotURI {
		t.Fatalf("stage = %s, want %s", res.Stage, StageSnapshotURI)
	}
	if res.Source != srv.URL+"/advertised/still" {
		t.Fatalf("source = %s", res.Source)
	}
}

func TestAcquireFallsBackToStreamCapture(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	extractor := &fakeExtractor{frame: jpegBody(4000)}
	resolver := &fakeResolver{
		profiles: []soap.MediaProfile{{Token: "Profile_1", Name: "Main"}},
		streams:  map[string]string{"Profile_1": "rtsp://10.0.0.5:554/Streaming/Channels/101"},
	}
	svc := NewService(catalog.Builtin(), fastProber(), resolver, extractor)
	svc.SnapshotDir = t.TempDir()

	res := svc.Acquire(context.Background(), deviceFor(srv, ""))
	if !res.OK {
		t.Fatalf("acquisition failed: stage=%s reason=%s", res.Stage, res.Reason)
	}
	if res.Stage != StageStreamCapture {
		t.Fatalf("stage = %s", res.Stage)
	}
	if res.Source != "rtsp://10.0.0.5:554/Streaming/Channels/101" {
		t.Fatalf("source = %s", res.Source)
	}
	if extractor.calls != 1 {
		t.Fatalf("extractor calls = %d", extractor.calls)
	}
	if res.Path == "" {
		t.Fatal("stream capture left no artifact path")
	}
	data, err := os.ReadFile(res.Path)
	if err != nil || !probe.IsImageSignature(data) {
		t.Fatalf("artifact unreadable: %v", err)
	}
}

func TestAcquireExtractorGarbageRejected(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	extractor := &fakeExtractor{frame: []byte("this is not an image but quite long anyway")}
	resolver := &fakeResolver{
		profiles: []soap.MediaProfile{{Token: "Profile_1"}},
		streams:  map[string]string{"Profile_1": "rtsp://10.0.0.5:554/s1"},
	}
	svc := NewService(catalog.Builtin(), fastProber(), resolver, extractor)

	res := svc.Acquire(context.Background(), deviceFor(srv, ""))
	if res.OK {
		t.Fatal("garbage frame accepted")
	}
	if res.Reason != ReasonExtractionFailed {
		t.Fatalf("reason = %s", res.Reason)
	}
}

func TestAcquireNoStreamURI(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	resolver := &fakeResolver{profiles: []soap.MediaProfile{{Token: "Profile_1"}}}
	svc := NewService(catalog.Builtin(), fastProber(), resolver, &fakeExtractor{})

	res := svc.Acquire(context.Background(), deviceFor(srv, ""))
	if res.OK {
		t.Fatal("unexpected success")
	}
	if res.Stage != StageStreamCapture || res.Reason != ReasonNoStreamURI {
		t.Fatalf("stage=%s reason=%s", res.Stage, res.Reason)
	}
}

func TestAcquireCredentialAdvancesOnlyOnBlanket401(t *testing.T) {
	stub := &stubProber{results: map[string]struct {
		hit   *probe.Hit
		stats probe.Stats
	}{
		"first":  {stats: probe.Stats{URLs: 4, Unauthorized: 4}},
		"second": {hit: &probe.Hit{URL: "http://cam/snap", Body: jpegBody(2000)}},
	}}

	dev := device.Device{
		Address: "10.0.0.5",
		Credentials: []device.Credential{
			{Username: "first", Password: "a"},
			{Username: "second", Password: "b"},
		},
	}
	svc := NewService(catalog.Builtin(), stub, &fakeResolver{}, &fakeExtractor{})

	res := svc.Acquire(context.Background(), dev)
	if !res.OK {
		t.Fatalf("acquisition failed: %s/%s", res.Stage, res.Reason)
	}
	if len(stub.credsSeen) != 2 {
		t.Fatalf("credentials tried = %v", stub.credsSeen)
	}
}

func TestAcquireCredentialDoesNotAdvanceOnContentRejection(t *testing.T) {
	stub := &stubProber{results: map[string]struct {
		hit   *probe.Hit
		stats probe.Stats
	}{
		// One URL answered 200 with junk: credential is fine, content is not.
		"first": {stats: probe.Stats{URLs: 4, Unauthorized: 3, Rejected: 1}},
	}}

	dev := device.Device{
		Address: "10.0.0.5",
		Credentials: []device.Credential{
			{Username: "first", Password: "a"},
			{Username: "second", Password: "b"},
		},
	}
	svc := NewService(catalog.Builtin(), stub, &fakeResolver{}, &fakeExtractor{})

	res := svc.Acquire(context.Background(), dev)
	if res.OK {
		t.Fatal("unexpected success")
	}
	if len(stub.credsSeen) != 1 {
		t.Fatalf("credentials tried = %v, want only the first", stub.credsSeen)
	}
	if res.Reason != ReasonNoValidImage {
		t.Fatalf("reason = %s", res.Reason)
	}
}

func TestAcquireAllCredentialsRejected(t *testing.T) {
	stub := &stubProber{results: map[string]struct {
		hit   *probe.Hit
		stats probe.Stats
	}{
		"first":  {stats: probe.Stats{URLs: 4, Unauthorized: 4}},
		"second": {stats: probe.Stats{URLs: 4, Unauthorized: 4}},
	}}

	dev := device.Device{
		Address: "10.0.0.5",
		Credentials: []device.Credential{
			{Username: "first", Password: "a"},
			{Username: "second", Password: "b"},
		},
	}
	svc := NewService(catalog.Builtin(), stub, &fakeResolver{}, &fakeExtractor{})

	res := svc.Acquire(context.Background(), dev)
	if res.OK {
		t.Fatal("unexpected success")
	}
	if res.Reason != ReasonAuthRejected {
		t.Fatalf("reason = %s", res.Reason)
	}
}

func TestAcquireAllTransportFailures(t *testing.T) {
	stub := &stubProber{results: map[string]struct {
		hit   *probe.Hit
		stats probe.Stats
	}{
		"first": {stats: probe.Stats{URLs: 4, Transport: 4}},
	}}

	dev := device.Device{
		Address:     "10.0.0.5",
		Credentials: []device.Credential{{Username: "first", Password: "a"}},
	}
	svc := NewService(catalog.Builtin(), stub, &fakeResolver{}, &fakeExtractor{})

	res := svc.Acquire(context.Background(), dev)
	if res.OK {
		t.Fatal("unexpected success")
	}
	if res.Reason != ReasonTransport {
		t.Fatalf("reason = %s", res.Reason)
	}
}

func TestAcquireNotFoundEverywhereIsNotTransport(t *testing.T) {
	// A camera that answers 404 on every path is reachable; the miss must
	// not be reported as a transport failure.
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	svc := NewService(catalog.Builtin(), fastProber(), &fakeResolver{}, &fakeExtractor{})
	res := svc.Acquire(context.Background(), deviceFor(srv, ""))
	if res.OK {
		t.Fatal("unexpected success")
	}
	if res.Reason == ReasonTransport {
		t.Fatal("404 responses classified as transport failure")
	}
	if res.Reason != ReasonNoMediaProfile {
		t.Fatalf("reason = %s", res.Reason)
	}
}

func TestSetCatalogAffectsNextAcquisition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/custom/still" {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(jpegBody(2000))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	svc := NewService(catalog.Builtin(), fastProber(), &fakeResolver{}, &fakeExtractor{})
	dev := deviceFor(srv, "CustomCam")

	if res := svc.Acquire(context.Background(), dev); res.OK {
		t.Fatal("succeeded before the vendor was known")
	}

	u, _ := url.Parse(srv.URL)
	port := u.Port()
	p, _ := strconv.Atoi(port)
	svc.SetCatalog(catalog.Builtin().WithExtras([]catalog.Profile{{
		Name:     "CustomCam",
		Keywords: []string{"customcam"},
		Ports:    []int{p},
		Paths:    []string{"/custom/still"},
	}}))

	res := svc.Acquire(context.Background(), dev)
	if !res.OK {
		t.Fatalf("acquisition failed after reload: %s/%s", res.Stage, res.Reason)
	}
	if !strings.Contains(res.Source, "/custom/still") {
		t.Fatalf("source = %s", res.Source)
	}
}

func TestSetCatalogDuringAcquisitions(t *testing.T) {
	// Swapping the catalog while acquisitions run must be race-free; each
	// acquisition keeps the catalog it started with.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ISAPI/Streaming/channels/101/picture" {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(jpegBody(2000))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	svc := NewService(catalog.Builtin(), fastProber(), &fakeResolver{}, &fakeExtractor{})
	dev := deviceFor(srv, "Hikvision")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			svc.SetCatalog(catalog.Builtin().WithExtras([]catalog.Profile{{
				Name:  "Spare",
				Ports: []int{80},
				Paths: []string{"/spare"},
			}}))
		}
	}()

	for i := 0; i < 10; i++ {
		if res := svc.Acquire(context.Background(), dev); !res.OK {
			t.Fatalf("acquisition %d failed: %s/%s", i, res.Stage, res.Reason)
		}
	}
	<-done
}

func TestArtifactPathsDistinctWithinSameSecond(t *testing.T) {
	svc := NewService(catalog.Builtin(), fastProber(), &fakeResolver{}, &fakeExtractor{})
	fixed := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	dev := device.Device{Address: "10.0.0.5"}
	first := svc.artifactPath(dev)
	second := svc.artifactPath(dev)
	if first == second {
		t.Fatalf("artifact paths collide: %s", first)
	}
}

type mapCache struct {
	m    map[string]string
	puts int
}

func (c *mapCache) Get(_ context.Context, addr string) (string, bool) {
	u, ok := c.m[addr]
	return u, ok
}

func (c *mapCache) Put(_ context.Context, addr, url string) {
	c.puts++
	c.m[addr] = url
}

func TestAcquireCachedURLShortCircuits(t *testing.T) {
	var pathsSeen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pathsSeen = append(pathsSeen, r.URL.Path)
		if r.URL.Path == "/remembered" {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(jpegBody(2000))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dev := deviceFor(srv, "Hikvision")
	cache := &mapCache{m: map[string]string{dev.Address: srv.URL + "/remembered"}}
	svc := NewService(catalog.Builtin(), fastProber(), &fakeResolver{}, &fakeExtractor{})
	svc.Cache = cache

	res := svc.Acquire(context.Background(), dev)
	if !res.OK {
		t.Fatalf("acquisition failed: %s/%s", res.Stage, res.Reason)
	}
	if len(pathsSeen) != 1 || pathsSeen[0] != "/remembered" {
		t.Fatalf("paths seen = %v, want only the cached URL", pathsSeen)
	}
}

func TestAcquireSuccessRecordsCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ISAPI/Streaming/channels/101/picture" {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(jpegBody(2000))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cache := &mapCache{m: map[string]string{}}
	svc := NewService(catalog.Builtin(), fastProber(), &fakeResolver{}, &fakeExtractor{})
	svc.Cache = cache

	dev := deviceFor(srv, "Hikvision")
	res := svc.Acquire(context.Background(), dev)
	if !res.OK {
		t.Fatalf("acquisition failed: %s/%s", res.Stage, res.Reason)
	}
	if cache.puts != 1 {
		t.Fatalf("cache puts = %d", cache.puts)
	}
	if cache.m[dev.Address] != res.Source {
		t.Fatalf("cached %s, source %s", cache.m[dev.Address], res.Source)
	}
}

func TestAcquireCapabilityEndpointRescues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/capability/discovered" {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(jpegBody(2000))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	svc := NewService(catalog.Builtin(), fastProber(), &fakeResolver{}, &fakeExtractor{})
	svc.Capabilities = func(context.Context, device.Device, catalog.Profile, device.Credential) []string {
		return []string{srv.URL + "/capability/discovered"}
	}

	res := svc.Acquire(context.Background(), deviceFor(srv, ""))
	if !res.OK {
		t.Fatalf("acquisition failed: %s/%s", res.Stage, res.Reason)
	}
	if res.Stage != StageDirectProbe {
		t.Fatalf("stage = %s", res.Stage)
	}
	if res.Source != srv.URL+"/capability/discovered" {
		t.Fatalf("source = %s", res.Source)
	}
}

type countingObserver struct {
	stage   string
	success bool
	calls   int
}

func (o *countingObserver) ObserveAcquisition(stage string, success bool, _ time.Duration) {
	o.calls++
	o.stage = stage
	o.success = success
}

func TestAcquireNotifiesObserver(t *testing.T) {
	obs := &countingObserver{}
	svc := NewService(catalog.Builtin(), fastProber(), &fakeResolver{}, &fakeExtractor{})
	svc.Observer = obs

	svc.Acquire(context.Background(), device.Device{Address: "10.0.0.5"})
	if obs.calls != 1 || obs.success {
		t.Fatalf("observer calls=%d success=%v", obs.calls, obs.success)
	}
}
