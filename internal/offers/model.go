package offers

import "time"

// Source tags where a PriceDump came from.
type Source string

const (
	SourceAPI  Source = "api"
	SourceMock Source = "mock"
	SourceDB   Source = "db"
)

// Canonical contract types.
const (
	ContractSpot     = "spotpris"
	ContractFixed    = "fastpris"
	ContractVariable = "variabel"
)

// Offer is a single canonical electricity contract, ready for estimation and ranking.
type Offer struct {
	ID           string `json:"id"`
	Vendor       string `json:"vendor"`
	Name         string `json:"name"`
	URL          string `json:"url"` // empty means the offer has no order link
	TrackingURL  string `json:"trackingUrl,omitempty"`
	ProgramID    string `json:"programId,omitempty"`
	Area         string `json:"area,omitempty"`
	Municipality string `json:"municipality,omitempty"`

	ContractType    string `json:"contractType"`
	RawContractType string `json:"rawContractType,omitempty"`

	SpotPrice      float64   `json:"spotPrice"`  // NOK/kWh
	MonthlyFee     float64   `json:"monthlyFee"` // NOK/month
	WarrantyMonths *int      `json:"warrantyMonths,omitempty"`
	Sparkline      []float64 `json:"sparkline,omitempty"`

	// AddonNokPerKwh is the signed markup over spot. Only set for spot contracts.
	AddonNokPerKwh *float64 `json:"addonNokPerKwh,omitempty"`
	// PerKwhTotalNok is the all-in unit price when the source supplies one.
	PerKwhTotalNok *float64 `json:"perKwhTotalNok,omitempty"`

	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// PriceDump is a timestamped batch of offers. It is always replaced as a whole.
type PriceDump struct {
	UpdatedAt time.Time `json:"updatedAt"`
	Offers    []Offer   `json:"offers"`
	Source    Source    `json:"source"`

	// SpotByArea optionally carries a zone spot price (NOK/kWh) keyed by area code.
	SpotByArea map[string]float64 `json:"spotByArea,omitempty"`
}

// Age reports how old the dump is relative to now.
func (d PriceDump) Age(now time.Time) time.Duration {
	return now.Sub(d.UpdatedAt)
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
