package model

import "strings"

type AssetClass string

const (
	Equity     AssetClass = "equity"
	Crypto     AssetClass = "crypto"
	Option     AssetClass = "option"
	Derivative AssetClass = "derivative"
)

// Asset identifies a tradeable instrument. Symbol is canonical (upper-cased),
// ID is the broker-assigned identifier when one exists.
type Asset struct {
	Symbol   string            `json:"symbol" db:"symbol"`
	Name     string            `json:"name" db:"name"`
	ID       string            `json:"id" db:"id"`
	Class    AssetClass        `json:"class" db:"class"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func NewAsset(symbol string, class AssetClass) Asset {
	if class == "" {
		class = Equity
	}
	return Asset{
		Symbol: strings.ToUpper(strings.TrimSpace(symbol)),
		Class:  class,
	}
}

func (a Asset) Key() string {
	if a.Symbol != "" {
		return a.Symbol
	}
	return a.ID
}
