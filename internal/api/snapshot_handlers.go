package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/technosupport/ts-snapscout/internal/acquire"
	"github.com/technosupport/ts-snapscout/internal/catalog"
	"github.com/technosupport/ts-snapscout/internal/device"
)

// Acquirer runs one acquisition. *acquire.Service satisfies it. Catalog is
// read through the service so a hot reload is visible to the vendors
// endpoint immediately.
type Acquirer interface {
	Acquire(ctx context.Context, dev device.Device) acquire.Result
	Catalog() *catalog.Catalog
}

type SnapshotHandler struct {
	Service Acquirer
}

func NewSnapshotHandler(svc Acquirer) *SnapshotHandler {
	return &SnapshotHandler{Service: svc}
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (h *SnapshotHandler) Register(r chi.Router) {
	r.Post("/api/v1/snapshots", h.Acquire)
	r.Get("/api/v1/vendors", h.ListVendors)
}

type snapshotRequest struct {
	Address       string   `json:"address"`
	Name          string   `json:"name"`
	CandidateURLs []string `json:"candidate_urls,omitempty"`
	Credentials   []struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Scheme   string `json:"scheme,omitempty"`
	} `json:"credentials"`
	// want=json returns metadata instead of the image body.
	Want string `json:"want,omitempty"`
}

// POST /api/v1/snapshots
func (h *SnapshotHandler) Acquire(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	host, _, err := net.SplitHostPort(req.Address)
	if err != nil {
		host = req.Address
	}
	if host == "" {
		respondError(w, http.StatusBadRequest, "Address required")
		return
	}
	if len(req.Credentials) == 0 {
		respondError(w, http.StatusBadRequest, "Credentials required")
		return
	}

	dev := device.Device{
		Address:       req.Address,
		Name:          req.Name,
		CandidateURLs: req.CandidateURLs,
	}
	for _, c := range req.Credentials {
		scheme := device.SchemeBasic
		if c.Scheme == "digest" {
			scheme = device.SchemeDigest
		}
		dev.Credentials = append(dev.Credentials, device.Credential{
			Username: c.Username,
			Password: c.Password,
			Scheme:   scheme,
		})
	}

	res := h.Service.Acquire(r.Context(), dev)
	if !res.OK {
		respondJSON(w, failureStatus(res.Reason), map[string]string{
			"stage":  string(res.Stage),
			"reason": string(res.Reason),
		})
		return
	}

	if req.Want == "json" {
		respondJSON(w, http.StatusOK, res)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("X-Snapscout-Source", res.Source)
	w.Header().Set("X-Snapscout-Stage", string(res.Stage))
	w.WriteHeader(http.StatusOK)
	w.Write(res.Image)
}

func failureStatus(reason acquire.Reason) int {
	switch reason {
	case acquire.ReasonNoCredentials:
		return http.StatusBadRequest
	case acquire.ReasonAuthRejected:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

// GET /api/v1/vendors
func (h *SnapshotHandler) ListVendors(w http.ResponseWriter, r *http.Request) {
	type vendor struct {
		Name     string   `json:"name"`
		Keywords []string `json:"keywords,omitempty"`
		Ports    []int    `json:"ports"`
		Paths    []string `json:"paths"`
	}
	var out []vendor
	for _, p := range h.Service.Catalog().Profiles() {
		out = append(out, vendor{
			Name:     p.Name,
			Keywords: p.Keywords,
			Ports:    p.Ports,
			Paths:    p.Paths,
		})
	}
	respondJSON(w, http.StatusOK, out)
}
