package core

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

// edge is a test valuation: val(buyer, seller) = value.
type edge struct {
	buyer  string
	seller string
	value  int64
}

// newTestMarket builds a market from ordered buyers, sellers (all priced 0)
// and valuations, failing the test on any construction error.
func newTestMarket(t *testing.T, buyers, sellers []string, edges []edge) *Market {
	t.Helper()

	m := NewMarket()
	for _, b := range buyers {
		if err := m.AddBuyer(b); err != nil {
			t.Fatalf("AddBuyer(%q): %v", b, err)
		}
	}
	for _, s := range sellers {
		if err := m.AddSeller(s, 0); err != nil {
			t.Fatalf("AddSeller(%q): %v", s, err)
		}
	}
	for _, e := range edges {
		if err := m.SetValuation(e.buyer, e.seller, decimal.NewFromInt(e.value)); err != nil {
			t.Fatalf("SetValuation(%q, %q): %v", e.buyer, e.seller, err)
		}
	}
	return m
}

// scenarioA has an immediate equilibrium at zero prices.
func scenarioA(t *testing.T) *Market {
	t.Helper()
	return newTestMarket(t, []string{"b1", "b2"}, []string{"s1", "s2"}, []edge{
		{"b1", "s1", 10}, {"b1", "s2", 8},
		{"b2", "s1", 8}, {"b2", "s2", 10},
	})
}

// scenarioB forces s1's price up to 10 through competition.
func scenarioB(t *testing.T) *Market {
	t.Helper()
	return newTestMarket(t, []string{"b1", "b2"}, []string{"s1", "s2"}, []edge{
		{"b1", "s1", 10}, {"b1", "s2", 0},
		{"b2", "s1", 10}, {"b2", "s2", 0},
	})
}

// randomMarket builds a market where every buyer has at least one adjacent
// seller and valuations are integers in [0, maxValue].
func randomMarket(t *testing.T, rng *rand.Rand, buyers, sellers int, maxValue int64) *Market {
	t.Helper()

	buyerIDs := make([]string, buyers)
	for i := range buyerIDs {
		buyerIDs[i] = "b" + string(rune('a'+i))
	}
	sellerIDs := make([]string, sellers)
	for i := range sellerIDs {
		sellerIDs[i] = "s" + string(rune('a'+i))
	}

	var edges []edge
	for _, b := range buyerIDs {
		connected := false
		for _, s := range sellerIDs {
			if rng.Intn(2) == 0 {
				edges = append(edges, edge{b, s, rng.Int63n(maxValue + 1)})
				connected = true
			}
		}
		if !connected {
			edges = append(edges, edge{b, sellerIDs[rng.Intn(sellers)], rng.Int63n(maxValue + 1)})
		}
	}
	return newTestMarket(t, buyerIDs, sellerIDs, edges)
}

// hasBuyerPerfectMatching reports whether m's full adjacency graph can match
// every buyer, by exhaustive search.
func hasBuyerPerfectMatching(m *Market) bool {
	used := make(map[string]bool)
	var try func(i int) bool
	try = func(i int) bool {
		if i == len(m.buyers) {
			return true
		}
		for _, s := range m.Neighbors(m.buyers[i]) {
			if used[s] {
				continue
			}
			used[s] = true
			if try(i + 1) {
				return true
			}
			used[s] = false
		}
		return false
	}
	return try(0)
}

// recordingTracer keeps every round trace.
type recordingTracer struct {
	rounds []*RoundTrace
}

func (r *recordingTracer) TraceRound(trace *RoundTrace) {
	r.rounds = append(r.rounds, trace)
}
