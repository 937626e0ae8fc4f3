package core

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/shopspring/decimal"
)

// maxDefaultRoundLimit caps DefaultRoundLimit for markets with huge
// valuation spans.
const maxDefaultRoundLimit = math.MaxInt32

// Options configures an Auction.
type Options struct {
	// MaxRounds is the maximum number of price-raising rounds. Zero selects
	// DefaultRoundLimit for the market.
	MaxRounds int

	// Tracer, if set, observes every round.
	Tracer Tracer

	// Logger receives anomaly warnings. Nil means log.Default().
	Logger *log.Logger
}

// DefaultRoundLimit returns a round limit that a feasible market with integer
// valuations can never exceed:
//
//	buyers × (ceil(max valuation) − floor(min valuation)) + Σ initial prices + 1
//
// Every round lowers the sum of prices plus buyer utilities by at least one,
// and that sum is bounded below by the value of any buyer-perfect matching.
func DefaultRoundLimit(m *Market) int {
	lowest, highest, ok := m.ValuationRange()
	if !ok {
		return 1
	}

	span := highest.Ceil().Sub(lowest.Floor())
	limit := span.Mul(decimal.NewFromInt(int64(len(m.buyers))))
	for _, p := range m.prices {
		limit = limit.Add(decimal.NewFromInt(p))
	}
	limit = limit.Add(decimal.NewFromInt(1))

	if limit.GreaterThan(decimal.NewFromInt(maxDefaultRoundLimit)) {
		return maxDefaultRoundLimit
	}
	return int(limit.IntPart())
}

// Auction drives the ascending auction on a Market. It mutates the market's
// prices in place; everything else is rebuilt every round.
type Auction struct {
	market    *Market
	tracer    Tracer
	logger    *log.Logger
	maxRounds int

	state  State
	round  int
	result *ClearingResult
	err    error
}

// NewAuction validates the market and prepares an auction over it.
func NewAuction(m *Market, opts Options) (*Auction, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultRoundLimit(m)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Auction{
		market:    m,
		tracer:    opts.Tracer,
		logger:    logger,
		maxRounds: maxRounds,
		state:     StateRunning,
	}, nil
}

// State returns the current auction state.
func (a *Auction) State() State {
	return a.state
}

// Round returns the number of completed price-raising rounds.
func (a *Auction) Round() int {
	return a.round
}

// MaxRounds returns the round limit in effect.
func (a *Auction) MaxRounds() int {
	return a.maxRounds
}

// Result returns the equilibrium once the auction has converged.
func (a *Auction) Result() *ClearingResult {
	return a.result
}

// Err returns the terminal error once the auction has failed.
func (a *Auction) Err() error {
	return a.err
}

func (a *Auction) fail(err error) (State, error) {
	a.state = StateFailed
	a.err = err
	return a.state, err
}

// Step runs a single round. Once the auction has converged or failed, Step
// returns the terminal state without doing any work.
//
// Round flow:
//  1. Snapshot prices
//  2. Build the demand graph
//  3. Compute a maximum matching and emit the round trace
//  4. Stop if every buyer is matched
//  5. Otherwise find the constricted set and raise its prices by one
func (a *Auction) Step() (State, error) {
	if a.state != StateRunning {
		return a.state, a.err
	}
	// Step 1: Snapshot prices
	prices := a.market.pricesSnapshot()

	// Step 2: Build the demand graph
	demand, err := BuildDemandGraph(a.market)
	if err != nil {
		return a.fail(err)
	}

	// Step 3: Compute a maximum matching
	mt := MaximumMatching(demand)
	if a.tracer != nil {
		a.tracer.TraceRound(&RoundTrace{
			Round:    a.round,
			Prices:   priceMap(demand.sellers, prices),
			Demand:   demand.Edges(),
			Matching: mt.Pairs(),
		})
	}

	// Step 4: Stop on a perfect matching
	if mt.IsPerfect() {
		a.state = StateConverged
		a.result = &ClearingResult{
			Assignments: mt.Assignments(),
			Prices:      priceMap(demand.sellers, prices),
			Rounds:      a.round,
			Buyers:      demand.buyers,
			Sellers:     demand.sellers,
		}
		return a.state, nil
	}

	// Step 5: Raise prices on the constricted set, unless the round limit
	// has been spent
	if a.round >= a.maxRounds {
		return a.fail(&NonTerminationError{Rounds: a.round, MaxRounds: a.maxRounds})
	}
	set := FindConstrictedSet(demand, mt)
	if set.IsEmpty() {
		a.logger.Printf("WARN: round %d: alternating search found no constricted sellers with %d of %d buyers unmatched; using overdemanded sellers",
			a.round, len(demand.buyers)-mt.Size(), len(demand.buyers))
		set = OverdemandedSellers(demand)
		if set.IsEmpty() {
			return a.fail(&NoOverdemandedSellerError{
				Round:    a.round,
				Prices:   priceMap(demand.sellers, prices),
				Demand:   demand.Edges(),
				Matching: mt.Pairs(),
			})
		}
	}

	for _, s := range set.sellerIdx {
		a.market.raisePrice(s)
	}
	a.round++

	return a.state, nil
}

// Run steps the auction until it converges or fails. The context and the
// round limit are checked once per round.
func (a *Auction) Run(ctx context.Context) (*ClearingResult, error) {
	for {
		if err := ctx.Err(); err != nil {
			_, err = a.fail(fmt.Errorf("clearing stopped after %d rounds: %w", a.round, err))
			return nil, err
		}

		state, err := a.Step()
		switch state {
		case StateConverged:
			return a.result, nil
		case StateFailed:
			return nil, err
		}
	}
}

// RunClearing runs an auction on m to convergence.
func RunClearing(ctx context.Context, m *Market, opts Options) (*ClearingResult, error) {
	auction, err := NewAuction(m, opts)
	if err != nil {
		return nil, err
	}
	return auction.Run(ctx)
}

func priceMap(sellers []string, prices []int64) map[string]int64 {
	result := make(map[string]int64, len(sellers))
	for s, id := range sellers {
		result[id] = prices[s]
	}
	return result
}
