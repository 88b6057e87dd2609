package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/bher20/stromdeals/internal/catalog"
	"github.com/bher20/stromdeals/internal/offers"
	"github.com/bher20/stromdeals/internal/ranking"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 500
)

// offersRequest reads the listing parameters from a query string. Unknown or
// malformed values fall back to defaults.
func offersRequest(q url.Values) catalog.OffersRequest {
	req := catalog.OffersRequest{
		Tier: q.Get("tier"),
		Area: q.Get("area"),
		Query: ranking.Query{
			Filter: ranking.Filter{
				ContractType: q.Get("type"),
				Vendor:       q.Get("vendor"),
				Query:        q.Get("q"),
				Warranty:     ranking.ParseWarrantyBuckets(q.Get("warranty")),
			},
			Sort: ranking.ParseSortMode(q.Get("sort")),
		},
	}
	if v, ok := offers.ParseNumber(q.Get("consumption")); ok {
		req.Consumption = &v
	}
	return req
}

func (s *Server) handleOffers(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/v1/offers"
	defer observe(endpoint)()

	req := offersRequest(r.URL.Query())
	req.Now = s.now()
	res, err := s.svc.Offers(r.Context(), req)
	if err != nil {
		s.fail(w, endpoint, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/v1/offers/{id}"
	defer observe(endpoint)()

	d, err := s.svc.Detail(r.PathValue("id"))
	if err != nil {
		s.fail(w, endpoint, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/v1/offers/{id}/history"
	defer observe(endpoint)()

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxHistoryLimit)
		}
	}
	id := r.PathValue("id")
	list, err := s.svc.History(r.Context(), id, limit)
	if err != nil {
		s.fail(w, endpoint, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"offerId":   id,
		"count":     len(list),
		"snapshots": list,
	})
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/v1/dump"
	defer observe(endpoint)()

	served, err := s.svc.Dump(r.Context())
	if err != nil {
		s.fail(w, endpoint, statusFor(err), err)
		return
	}
	w.Header().Set("X-Served-From", served.Tier)
	writeJSON(w, http.StatusOK, served.Dump)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/v1/status"
	defer observe(endpoint)()

	st, err := s.svc.Status(r.Context())
	if err != nil {
		s.fail(w, endpoint, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
