package model

// AccountInfo is the normalized view of a brokerage account.
type AccountInfo struct {
	ID             string  `json:"id"`
	Currency       string  `json:"currency"`
	Cash           float64 `json:"cash"`
	BuyingPower    float64 `json:"buying_power"`
	PortfolioValue float64 `json:"portfolio_value"`
}
