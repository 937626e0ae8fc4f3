package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// VerifyEquilibrium checks that (matching, prices) is a competitive
// equilibrium of m: every buyer is matched to a distinct adjacent seller, and
// no buyer strictly prefers another adjacent seller at the given prices.
// Prices are taken from the prices argument, not from the market.
func VerifyEquilibrium(m *Market, matching map[string]string, prices map[string]int64) error {
	taken := make(map[string]string, len(matching))

	for _, buyer := range m.buyers {
		seller, ok := matching[buyer]
		if !ok {
			return fmt.Errorf("buyer %q is unmatched", buyer)
		}
		if other, dup := taken[seller]; dup {
			return fmt.Errorf("seller %q is matched to both %q and %q", seller, other, buyer)
		}
		taken[seller] = buyer

		value, adjacent := m.Valuation(buyer, seller)
		if !adjacent {
			return fmt.Errorf("buyer %q is matched to non-adjacent seller %q", buyer, seller)
		}
		price, ok := prices[seller]
		if !ok {
			return fmt.Errorf("no price for seller %q", seller)
		}
		if price < 0 {
			return fmt.Errorf("seller %q has negative price %d", seller, price)
		}
		got := value.Sub(decimal.NewFromInt(price))

		for _, alt := range m.Neighbors(buyer) {
			altValue, _ := m.Valuation(buyer, alt)
			altPrice, ok := prices[alt]
			if !ok {
				return fmt.Errorf("no price for seller %q", alt)
			}
			if altUtility := altValue.Sub(decimal.NewFromInt(altPrice)); altUtility.GreaterThan(got) {
				return fmt.Errorf("buyer %q prefers %q (utility %s) over matched %q (utility %s)",
					buyer, alt, altUtility, seller, got)
			}
		}
	}

	for buyer := range matching {
		if !m.IsBuyer(buyer) {
			return fmt.Errorf("matching contains unknown buyer %q", buyer)
		}
	}
	for seller := range prices {
		if !m.IsSeller(seller) {
			return fmt.Errorf("prices contain unknown seller %q", seller)
		}
	}
	return nil
}
