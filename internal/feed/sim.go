package feed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avolkov/pricevault/internal/model"
)

// Starting prices for well-known symbols; anything else starts at 100.
var simBasePrices = map[string]float64{
	"BTCUSDT": 50000,
	"ETHUSDT": 3000,
	"SOLUSDT": 100,
}

// Simulator is a poll source producing a per-symbol random walk. Each call
// moves the price by up to ±1% and advances the symbol's round counter, so
// downstream dedup sees realistic monotonic sequence ids.
type Simulator struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	rounds map[string]uint64
	now    func() time.Time
}

// NewSimulator creates a simulator for the given canonical symbols.
// Round counters start at 1000, matching a feed that has been live a while.
func NewSimulator(symbols []string) *Simulator {
	s := &Simulator{
		prices: make(map[string]decimal.Decimal, len(symbols)),
		rounds: make(map[string]uint64, len(symbols)),
		now:    time.Now,
	}
	for _, sym := range symbols {
		base, ok := simBasePrices[sym]
		if !ok {
			base = 100
		}
		s.prices[sym] = decimal.NewFromFloat(base)
		s.rounds[sym] = 1000
	}
	return s
}

// Latest returns the next step of the symbol's random walk. It never fails
// for a configured symbol.
func (s *Simulator) Latest(_ context.Context, symbol string) (model.PriceObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.prices[symbol]
	if !ok {
		return model.PriceObservation{}, fmt.Errorf("%w: symbol %q not simulated", ErrUnavailable, symbol)
	}

	step := decimal.NewFromFloat((rand.Float64()*2 - 1) * 0.01)
	price = price.Add(price.Mul(step)).Round(2)
	s.prices[symbol] = price

	s.rounds[symbol]++

	return model.PriceObservation{
		Symbol:     symbol,
		Price:      price,
		ObservedAt: s.now().Unix(),
		Seq:        s.rounds[symbol],
	}, nil
}
