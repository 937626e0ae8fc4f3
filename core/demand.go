package core

import (
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/openclearing/matching"
)

// DemandGraph is the preferred-seller graph of a single round: buyer b is
// adjacent to seller s iff s maximizes val(b, s) - price(s) over b's
// neighbors. Ties are kept.
type DemandGraph struct {
	buyers  []string
	sellers []string

	// adj[b] lists demanded seller indices in ascending (market) order.
	adj [][]int
}

// BuildDemandGraph computes the demand graph for the market's current
// prices. The market is not modified.
func BuildDemandGraph(m *Market) (*DemandGraph, error) {
	d := &DemandGraph{
		buyers:  m.Buyers(),
		sellers: m.Sellers(),
		adj:     make([][]int, len(m.buyers)),
	}

	for b, vals := range m.valuations {
		if len(vals) == 0 {
			return nil, &DisconnectedBuyerError{Buyer: m.buyers[b]}
		}

		// Pass 1: maximum utility over adjacent sellers
		maxUtility := utility(vals[0], m.prices)
		for _, v := range vals[1:] {
			if u := utility(v, m.prices); u.GreaterThan(maxUtility) {
				maxUtility = u
			}
		}

		// Pass 2: every seller achieving it, in seller order
		demanded := make([]int, 0, 1)
		for _, v := range vals {
			if utility(v, m.prices).Equal(maxUtility) {
				demanded = append(demanded, v.seller)
			}
		}
		d.adj[b] = demanded
	}

	return d, nil
}

func utility(v valuation, prices []int64) decimal.Decimal {
	return v.value.Sub(decimal.NewFromInt(prices[v.seller]))
}

// demanded returns the sellers demanded by buyer, in seller order.
func (d *DemandGraph) demanded(buyer string) []string {
	for b, id := range d.buyers {
		if id == buyer {
			sellers := make([]string, len(d.adj[b]))
			for i, s := range d.adj[b] {
				sellers[i] = d.sellers[s]
			}
			return sellers
		}
	}
	return nil
}

// Edges lists every demand edge, ordered by buyer then seller.
func (d *DemandGraph) Edges() []DemandEdge {
	edges := make([]DemandEdge, 0, len(d.adj))
	for b, demanded := range d.adj {
		for _, s := range demanded {
			edges = append(edges, DemandEdge{Buyer: d.buyers[b], Seller: d.sellers[s]})
		}
	}
	return edges
}

// graph exposes the demand graph to the matching engine.
func (d *DemandGraph) graph() matching.Graph {
	return matching.Graph{
		Left:  len(d.buyers),
		Right: len(d.sellers),
		Adj:   d.adj,
	}
}

// Matching is a partial one-to-one assignment of buyers to sellers computed
// on a demand graph.
type Matching struct {
	buyers  []string
	sellers []string
	result  *matching.Result
}

// MaximumMatching computes a maximum matching of the demand graph. Sellers
// are tried in the same order the demand graph lists them.
func MaximumMatching(d *DemandGraph) *Matching {
	return &Matching{
		buyers:  d.buyers,
		sellers: d.sellers,
		result:  matching.Maximum(d.graph()),
	}
}

// Size returns the number of matched buyers.
func (mt *Matching) Size() int {
	return mt.result.Size
}

// IsPerfect reports whether every buyer is matched.
func (mt *Matching) IsPerfect() bool {
	return mt.result.IsLeftPerfect()
}

// SellerOf returns the seller matched to buyer.
func (mt *Matching) SellerOf(buyer string) (string, bool) {
	for b, id := range mt.buyers {
		if id != buyer {
			continue
		}
		s := mt.result.LeftToRight[b]
		if s == matching.Unmatched {
			return "", false
		}
		return mt.sellers[s], true
	}
	return "", false
}

// Pairs returns the matched buyer to seller map.
func (mt *Matching) Pairs() map[string]string {
	pairs := make(map[string]string, mt.result.Size)
	for b, s := range mt.result.LeftToRight {
		if s != matching.Unmatched {
			pairs[mt.buyers[b]] = mt.sellers[s]
		}
	}
	return pairs
}

// Assignments returns the matched pairs in buyer order.
func (mt *Matching) Assignments() []Assignment {
	assignments := make([]Assignment, 0, mt.result.Size)
	for b, s := range mt.result.LeftToRight {
		if s != matching.Unmatched {
			assignments = append(assignments, Assignment{Buyer: mt.buyers[b], Seller: mt.sellers[s]})
		}
	}
	return assignments
}
