package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/bher20/stromdeals/internal/offers"
	"github.com/bher20/stromdeals/internal/vendorapi"
)

// RefreshResponse is the response structure for the refresh endpoint.
type RefreshResponse struct {
	Status    string        `json:"status"`
	Source    offers.Source `json:"source,omitempty"`
	UpdatedAt *time.Time    `json:"updatedAt,omitempty"`
	Offers    int           `json:"offers"`
	Error     string        `json:"error,omitempty"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/v1/refresh"
	defer observe(endpoint)()

	d, err := s.svc.Refresh(r.Context())
	if err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, vendorapi.ErrNotConfigured) {
			code = http.StatusConflict
		}
		s.fail(w, endpoint, code, err)
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{
		Status:    "ok",
		Source:    d.Source,
		UpdatedAt: &d.UpdatedAt,
		Offers:    len(d.Offers),
	})
}
