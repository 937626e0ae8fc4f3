package core

import (
	"sort"

	"github.com/cloudx-io/openclearing/matching"
)

// FindConstrictedSet runs a breadth-first alternating search from every
// unmatched buyer: a buyer reaches all of its demanded sellers, and a reached
// seller that is matched brings its buyer into the frontier.
//
// When mt is a maximum matching and not perfect, the reached sellers are
// exactly the demand neighbors of the reached buyers and are fewer than them
// (a Hall violation witness). A perfect matching yields an empty set.
func FindConstrictedSet(d *DemandGraph, mt *Matching) ConstrictedSet {
	seenBuyer := make([]bool, len(d.buyers))
	seenSeller := make([]bool, len(d.sellers))

	queue := mt.result.UnmatchedLeft()
	for _, b := range queue {
		seenBuyer[b] = true
	}

	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]

		for _, s := range d.adj[b] {
			if seenSeller[s] {
				continue
			}
			seenSeller[s] = true

			owner := mt.result.RightToLeft[s]
			if owner != matching.Unmatched && !seenBuyer[owner] {
				seenBuyer[owner] = true
				queue = append(queue, owner)
			}
		}
	}

	set := ConstrictedSet{}
	for b, seen := range seenBuyer {
		if seen {
			set.Buyers = append(set.Buyers, d.buyers[b])
		}
	}
	for s, seen := range seenSeller {
		if seen {
			set.Sellers = append(set.Sellers, d.sellers[s])
			set.sellerIdx = append(set.sellerIdx, s)
		}
	}
	return set
}

// OverdemandedSellers returns every seller demanded by more than one buyer,
// in market order. The buyers of the returned set are the buyers demanding
// at least one of those sellers.
func OverdemandedSellers(d *DemandGraph) ConstrictedSet {
	counts := make([]int, len(d.sellers))
	for _, demanded := range d.adj {
		for _, s := range demanded {
			counts[s]++
		}
	}

	set := ConstrictedSet{Fallback: true}
	over := make(map[int]bool)
	for s, c := range counts {
		if c > 1 {
			over[s] = true
			set.Sellers = append(set.Sellers, d.sellers[s])
			set.sellerIdx = append(set.sellerIdx, s)
		}
	}
	for b, demanded := range d.adj {
		for _, s := range demanded {
			if over[s] {
				set.Buyers = append(set.Buyers, d.buyers[b])
				break
			}
		}
	}
	return set
}

// NeighborsOf returns the demand-graph neighbors of the given buyers in
// market order.
func (d *DemandGraph) NeighborsOf(buyers []string) []string {
	want := make(map[string]bool, len(buyers))
	for _, b := range buyers {
		want[b] = true
	}

	seen := make(map[int]bool)
	for b, id := range d.buyers {
		if !want[id] {
			continue
		}
		for _, s := range d.adj[b] {
			seen[s] = true
		}
	}

	idx := make([]int, 0, len(seen))
	for s := range seen {
		idx = append(idx, s)
	}
	sort.Ints(idx)

	neighbors := make([]string, len(idx))
	for i, s := range idx {
		neighbors[i] = d.sellers[s]
	}
	return neighbors
}
