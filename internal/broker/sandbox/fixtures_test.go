package sandbox

import "github.com/quantfolio/trading-bot/internal/quotes"

type quotesFixture struct {
	src *quotes.Static
}

func newQuotesFixture() *quotesFixture {
	return &quotesFixture{src: quotes.NewStatic()}
}

func (f *quotesFixture) price(symbol string, price float64) {
	f.src.SetPrice(symbol, price)
}
