package api

import (
	"net/http"

	"github.com/bher20/stromdeals/internal/offers"
)

func (s *Server) handleVendors(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/v1/vendors"
	defer observe(endpoint)()

	list, err := s.svc.Vendors(r.Context())
	if err != nil {
		s.fail(w, endpoint, statusFor(err), err)
		return
	}
	if list == nil {
		list = []offers.VendorRef{}
	}
	writeJSON(w, http.StatusOK, struct {
		Vendors []offers.VendorRef `json:"vendors"`
	}{Vendors: list})
}

func (s *Server) handleVendorOffers(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/v1/vendors/{slug}/offers"
	defer observe(endpoint)()

	slug := r.PathValue("slug")
	list, err := s.svc.VendorOffers(r.Context(), slug)
	if err != nil {
		s.fail(w, endpoint, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Slug   string         `json:"slug"`
		Offers []offers.Offer `json:"offers"`
	}{Slug: slug, Offers: list})
}
