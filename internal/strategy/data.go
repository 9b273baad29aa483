package strategy

import "time"

// Shapes consumed from the external data service. The core never computes
// these, it only passes them along to strategy implementations.

// ReturnsMatrix is a dates×symbols table of periodic returns.
type ReturnsMatrix struct {
	Symbols []string    `json:"symbols"`
	Dates   []time.Time `json:"dates"`
	Values  [][]float64 `json:"values"` // row per date, column per symbol
}

// FactorData is a dates×factors table plus the latest covered date.
type FactorData struct {
	Factors    []string    `json:"factors"`
	Dates      []time.Time `json:"dates"`
	Values     [][]float64 `json:"values"`
	LatestDate time.Time   `json:"latest_date"`
}

// DataService is the contract a market data supplier must satisfy.
type DataService interface {
	HistoricData(symbols []string, start, end time.Time) (ReturnsMatrix, error)
	Constituents(indexName string) ([]string, error)
	FactorData(start time.Time) (FactorData, error)
}
