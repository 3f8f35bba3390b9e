// Package probe implements the direct-fetch stage: walking the vendor's
// port×path grid with one credential and validating whatever comes back.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/technosupport/ts-snapscout/internal/device"
	"github.com/technosupport/ts-snapscout/internal/httpauth"
)

// Bodies above this are not snapshots; stop reading.
const maxBodyBytes = 16 << 20

// Probe outcomes, also used as metric label values.
const (
	OutcomeHit          = "hit"
	OutcomeUnauthorized = "unauthorized"
	OutcomeRejected     = "rejected"   // 200 received, content validation failed
	OutcomeBadStatus    = "bad_status" // reachable, answered non-200/401
	OutcomeTransport    = "transport"  // timeout, refused connection, read failure
)

// Recorder receives per-URL probe outcomes. Satisfied by metrics.Collector.
type Recorder interface {
	ObserveProbe(outcome string)
}

// Hit is a qualifying snapshot response.
type Hit struct {
	URL         string
	ContentType string
	Body        []byte
}

// Stats summarizes one probe sweep so the orchestrator can classify the miss.
type Stats struct {
	URLs         int // URLs tried
	Attempts     int // HTTP round trips including retries
	Unauthorized int // URLs that ended in 401
	Rejected     int // URLs that returned 200 but failed validation
	BadStatus    int // URLs that answered some other HTTP status
	Transport    int // URLs that never produced an HTTP response
}

// AllUnauthorized reports whether every probed URL rejected the credential;
// the signal that trying the next credential could help.
func (s Stats) AllUnauthorized() bool {
	return s.URLs > 0 && s.Unauthorized == s.URLs
}

// SawValidResponse reports whether at least one endpoint answered 200.
func (s Stats) SawValidResponse() bool {
	return s.Rejected > 0
}

// Prober issues the probe GETs. One Prober is safe for concurrent use by
// independent acquisitions; within one acquisition calls are sequential.
type Prober struct {
	Client        *http.Client
	Policy        RetryPolicy
	MinImageBytes int
	Recorder      Recorder

	// sleep is swappable in tests.
	sleep func(time.Duration)
}

func New(timeout time.Duration) *Prober {
	return &Prober{
		Client:        &http.Client{Timeout: timeout},
		Policy:        DefaultRetryPolicy(),
		MinImageBytes: DefaultMinImageBytes,
		sleep:         time.Sleep,
	}
}

// PortSequence builds the probe port order: the port the device was
// discovered on first, then the vendor's catalog ports with that port
// removed, so the own port appears exactly once.
func PortSequence(devicePort int, profilePorts []int) []int {
	out := []int{devicePort}
	for _, p := range profilePorts {
		if p != devicePort {
			out = append(out, p)
		}
	}
	return out
}

// URLs builds the candidate list: ports vary slower than paths, mirroring
// the observation that a device answering on one port tends to answer all
// its paths there.
func URLs(dev device.Device, ports []int, paths []string) []string {
	out := make([]string, 0, len(ports)*len(paths))
	for _, port := range ports {
		for _, path := range paths {
			out = append(out, fmt.Sprintf("%s://%s:%d%s", dev.Scheme(), dev.Host(), port, path))
		}
	}
	return out
}

// Probe tries every URL in order under one credential and stops at the first
// qualifying hit. A nil Hit with exhausted Stats means the sweep missed.
func (p *Prober) Probe(ctx context.Context, urls []string, cred device.Credential) (*Hit, Stats) {
	var stats Stats
	for _, u := range urls {
		if ctx.Err() != nil {
			return nil, stats
		}
		stats.URLs++
		hit, outcome, attempts := p.tryURL(ctx, u, cred)
		stats.Attempts += attempts
		if p.Recorder != nil {
			p.Recorder.ObserveProbe(outcome)
		}
		switch outcome {
		case OutcomeHit:
			return hit, stats
		case OutcomeUnauthorized:
			stats.Unauthorized++
		case OutcomeRejected:
			stats.Rejected++
		case OutcomeBadStatus:
			stats.BadStatus++
		default:
			stats.Transport++
		}
	}
	return nil, stats
}

// TryURL probes a single URL with retries; used for cached and
// capability-advertised endpoints that bypass the catalog grid.
func (p *Prober) TryURL(ctx context.Context, rawURL string, cred device.Credential) (*Hit, bool) {
	hit, outcome, _ := p.tryURL(ctx, rawURL, cred)
	if p.Recorder != nil {
		p.Recorder.ObserveProbe(outcome)
	}
	return hit, outcome == OutcomeHit
}

func (p *Prober) tryURL(ctx context.Context, rawURL string, cred device.Credential) (*Hit, string, int) {
	for attempt := 1; ; attempt++ {
		hit, status, err := p.fetch(ctx, rawURL, cred)
		if hit != nil {
			return hit, OutcomeHit, attempt
		}

		var outcome string
		switch {
		case status == http.StatusUnauthorized:
			outcome = OutcomeUnauthorized
		case status == http.StatusOK:
			outcome = OutcomeRejected
		case status == 0:
			outcome = OutcomeTransport
		default:
			outcome = OutcomeBadStatus
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[probe] %s attempt %d: %v", rawURL, attempt, err)
		}
		if !p.Policy.ShouldRetry(attempt, status) {
			return nil, outcome, attempt
		}
		select {
		case <-ctx.Done():
			return nil, outcome, attempt
		default:
		}
		p.wait(p.Policy.Delay(attempt))
	}
}

func (p *Prober) wait(d time.Duration) {
	if p.sleep != nil {
		p.sleep(d)
		return
	}
	time.Sleep(d)
}

// fetch performs one GET and validates the response. A nil Hit means the
// response did not qualify; status is 0 when the transport failed.
func (p *Prober) fetch(ctx context.Context, rawURL string, cred device.Credential) (*Hit, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cacheBust(rawURL), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "image/jpeg,image/*")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("User-Agent", "ts-snapscout/1.0")

	resp, err := httpauth.Do(p.Client, req, nil, cred)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	contentType := resp.Header.Get("Content-Type")
	if verr := Validate(resp.StatusCode, contentType, body, p.MinImageBytes); verr != nil {
		return nil, resp.StatusCode, verr
	}
	return &Hit{URL: rawURL, ContentType: contentType, Body: body}, resp.StatusCode, nil
}

// cacheBust appends a time-derived query parameter so intermediaries and
// device-side caches cannot serve a stale frame.
func cacheBust(rawURL string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%snocache=%d", rawURL, sep, time.Now().UnixNano())
}
