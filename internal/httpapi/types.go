package httpapi

import (
	"github.com/wateryu2030/newhigh-zh/internal/domain"
	"github.com/wateryu2030/newhigh-zh/internal/gather"
)

// InstrumentsResponse lists the stored universe.
type InstrumentsResponse struct {
	Count       int                 `json:"count"`
	Instruments []domain.Instrument `json:"instruments"`
}

// BarsResponse returns daily bars for one instrument.
type BarsResponse struct {
	Code  string            `json:"code"`
	Start string            `json:"start"`
	End   string            `json:"end"`
	Count int               `json:"count"`
	Bars  []domain.DailyBar `json:"bars"`
}

// IndicatorsResponse returns computed indicators for one instrument.
type IndicatorsResponse struct {
	Code       string                      `json:"code"`
	Start      string                      `json:"start"`
	End        string                      `json:"end"`
	Count      int                         `json:"count"`
	Indicators []domain.TechnicalIndicator `json:"indicators"`
}

// SummaryResponse returns the latest pass summary per gatherer.
type SummaryResponse struct {
	Passes []*gather.Summary `json:"passes"`
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
