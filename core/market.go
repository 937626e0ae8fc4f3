package core

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// valuation is one adjacency of a buyer, indexing into Market.sellers.
type valuation struct {
	seller int
	value  decimal.Decimal
}

// Market is the valuation graph: ordered buyers and sellers, the valuation
// of every adjacent buyer-seller pair, and the current seller prices.
//
// Insertion order of buyers and sellers is the iteration order used by every
// computation, which makes clearing results reproducible.
type Market struct {
	buyers      []string
	sellers     []string
	buyerIndex  map[string]int
	sellerIndex map[string]int

	// valuations[b] is sorted by seller index.
	valuations [][]valuation
	prices     []int64
}

// NewMarket returns an empty market.
func NewMarket() *Market {
	return &Market{
		buyerIndex:  make(map[string]int),
		sellerIndex: make(map[string]int),
	}
}

func (m *Market) checkNewID(id string) error {
	if id == "" {
		return fmt.Errorf("empty node id")
	}
	if _, ok := m.buyerIndex[id]; ok {
		return fmt.Errorf("duplicate node id %q (already a buyer)", id)
	}
	if _, ok := m.sellerIndex[id]; ok {
		return fmt.Errorf("duplicate node id %q (already a seller)", id)
	}
	return nil
}

// AddBuyer appends a buyer.
func (m *Market) AddBuyer(id string) error {
	if err := m.checkNewID(id); err != nil {
		return err
	}
	m.buyerIndex[id] = len(m.buyers)
	m.buyers = append(m.buyers, id)
	m.valuations = append(m.valuations, nil)
	return nil
}

// AddSeller appends a seller with the given starting price.
func (m *Market) AddSeller(id string, initialPrice int64) error {
	if err := m.checkNewID(id); err != nil {
		return err
	}
	if initialPrice < 0 {
		return fmt.Errorf("seller %q has negative initial price %d", id, initialPrice)
	}
	m.sellerIndex[id] = len(m.sellers)
	m.sellers = append(m.sellers, id)
	m.prices = append(m.prices, initialPrice)
	return nil
}

// SetValuation makes buyer and seller adjacent with the given valuation,
// replacing any previous valuation of the pair.
func (m *Market) SetValuation(buyer, seller string, value decimal.Decimal) error {
	b, ok := m.buyerIndex[buyer]
	if !ok {
		return fmt.Errorf("unknown buyer %q", buyer)
	}
	s, ok := m.sellerIndex[seller]
	if !ok {
		return fmt.Errorf("unknown seller %q", seller)
	}

	vals := m.valuations[b]
	i := sort.Search(len(vals), func(i int) bool { return vals[i].seller >= s })
	if i < len(vals) && vals[i].seller == s {
		vals[i].value = value
		return nil
	}
	vals = append(vals, valuation{})
	copy(vals[i+1:], vals[i:])
	vals[i] = valuation{seller: s, value: value}
	m.valuations[b] = vals
	return nil
}

// Buyers returns the buyer ids in insertion order.
func (m *Market) Buyers() []string {
	return append([]string(nil), m.buyers...)
}

// Sellers returns the seller ids in insertion order.
func (m *Market) Sellers() []string {
	return append([]string(nil), m.sellers...)
}

// IsBuyer reports whether id is a buyer of this market.
func (m *Market) IsBuyer(id string) bool {
	_, ok := m.buyerIndex[id]
	return ok
}

// IsSeller reports whether id is a seller of this market.
func (m *Market) IsSeller(id string) bool {
	_, ok := m.sellerIndex[id]
	return ok
}

// Neighbors returns the sellers adjacent to buyer, in seller order.
func (m *Market) Neighbors(buyer string) []string {
	b, ok := m.buyerIndex[buyer]
	if !ok {
		return nil
	}
	neighbors := make([]string, len(m.valuations[b]))
	for i, v := range m.valuations[b] {
		neighbors[i] = m.sellers[v.seller]
	}
	return neighbors
}

// Valuation returns val(buyer, seller) and whether the pair is adjacent.
func (m *Market) Valuation(buyer, seller string) (decimal.Decimal, bool) {
	b, ok := m.buyerIndex[buyer]
	if !ok {
		return decimal.Zero, false
	}
	s, ok := m.sellerIndex[seller]
	if !ok {
		return decimal.Zero, false
	}
	for _, v := range m.valuations[b] {
		if v.seller == s {
			return v.value, true
		}
	}
	return decimal.Zero, false
}

// Price returns the current price of seller.
func (m *Market) Price(seller string) (int64, bool) {
	s, ok := m.sellerIndex[seller]
	if !ok {
		return 0, false
	}
	return m.prices[s], true
}

// Prices returns a snapshot of all seller prices.
func (m *Market) Prices() map[string]int64 {
	prices := make(map[string]int64, len(m.sellers))
	for s, id := range m.sellers {
		prices[id] = m.prices[s]
	}
	return prices
}

// EdgeCount returns the number of adjacent buyer-seller pairs.
func (m *Market) EdgeCount() int {
	n := 0
	for _, vals := range m.valuations {
		n += len(vals)
	}
	return n
}

// Validate checks the preconditions of clearing: at least one buyer, and
// every buyer adjacent to at least one seller.
func (m *Market) Validate() error {
	if len(m.buyers) == 0 {
		return ErrEmptyMarket
	}
	for b, vals := range m.valuations {
		if len(vals) == 0 {
			return &DisconnectedBuyerError{Buyer: m.buyers[b]}
		}
	}
	return nil
}

// ValuationRange returns the smallest and largest valuation in the market.
// ok is false when the market has no edges.
func (m *Market) ValuationRange() (lowest, highest decimal.Decimal, ok bool) {
	for _, vals := range m.valuations {
		for _, v := range vals {
			if !ok {
				lowest, highest, ok = v.value, v.value, true
				continue
			}
			if v.value.LessThan(lowest) {
				lowest = v.value
			}
			if v.value.GreaterThan(highest) {
				highest = v.value
			}
		}
	}
	return lowest, highest, ok
}

// Clone returns a deep copy whose prices can be mutated independently.
func (m *Market) Clone() *Market {
	c := &Market{
		buyers:      m.Buyers(),
		sellers:     m.Sellers(),
		buyerIndex:  make(map[string]int, len(m.buyerIndex)),
		sellerIndex: make(map[string]int, len(m.sellerIndex)),
		valuations:  make([][]valuation, len(m.valuations)),
		prices:      append([]int64(nil), m.prices...),
	}
	for id, i := range m.buyerIndex {
		c.buyerIndex[id] = i
	}
	for id, i := range m.sellerIndex {
		c.sellerIndex[id] = i
	}
	for b, vals := range m.valuations {
		c.valuations[b] = append([]valuation(nil), vals...)
	}
	return c
}

// raisePrice increments the price of the seller at index s by one.
func (m *Market) raisePrice(s int) {
	m.prices[s]++
}

// pricesSnapshot copies the price vector in seller order.
func (m *Market) pricesSnapshot() []int64 {
	return append([]int64(nil), m.prices...)
}
