package core

import "fmt"

// State is the lifecycle state of an Auction.
type State int

const (
	StateRunning State = iota
	StateConverged
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateConverged:
		return "converged"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DemandEdge is a single buyer-seller edge of a demand graph.
type DemandEdge struct {
	Buyer  string `json:"buyer"`
	Seller string `json:"seller"`
}

func (e DemandEdge) String() string {
	return "(" + e.Buyer + ", " + e.Seller + ")"
}

// Assignment pairs a buyer with the seller it is matched to.
type Assignment struct {
	Buyer  string `json:"buyer"`
	Seller string `json:"seller"`
}

// ConstrictedSet is the set of buyers and sellers whose prices must move.
// Fallback is set when the sellers come from the overdemanded-seller
// fallback rather than the alternating search.
type ConstrictedSet struct {
	Buyers   []string
	Sellers  []string
	Fallback bool

	sellerIdx []int
}

// IsEmpty reports whether no seller was identified.
func (c ConstrictedSet) IsEmpty() bool {
	return len(c.Sellers) == 0
}

// RoundTrace is the observation record emitted once per round, after the
// matching is computed and before prices change.
type RoundTrace struct {
	Round    int
	Prices   map[string]int64
	Demand   []DemandEdge
	Matching map[string]string
}

// Tracer receives one RoundTrace per round. It must not retain or mutate the
// market.
type Tracer interface {
	TraceRound(trace *RoundTrace)
}

// ClearingResult contains the equilibrium found by a converged auction.
type ClearingResult struct {
	// Assignments lists every buyer with its seller, in buyer order.
	Assignments []Assignment

	// Prices holds the seller prices of the final round.
	Prices map[string]int64

	// Rounds is the number of price-raising rounds before convergence.
	Rounds int

	// Buyers and Sellers preserve market order for deterministic output.
	Buyers  []string
	Sellers []string
}

// Matching returns the assignments as a buyer to seller map.
func (r *ClearingResult) Matching() map[string]string {
	pairs := make(map[string]string, len(r.Assignments))
	for _, a := range r.Assignments {
		pairs[a.Buyer] = a.Seller
	}
	return pairs
}
