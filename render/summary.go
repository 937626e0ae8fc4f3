package render

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/openclearing/core"
)

// WriteSummary prints the assignment table of a converged auction: one row
// per buyer with its seller, the price paid and the buyer's utility.
func WriteSummary(w io.Writer, m *core.Market, result *core.ClearingResult) error {
	if _, err := fmt.Fprintf(w, "Market cleared after %d rounds\n", result.Rounds); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BUYER\tSELLER\tPRICE\tVALUATION\tUTILITY")
	for _, a := range result.Assignments {
		price := result.Prices[a.Seller]
		value, _ := m.Valuation(a.Buyer, a.Seller)
		utility := value.Sub(decimal.NewFromInt(price))
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", a.Buyer, a.Seller, price, value.String(), utility.String())
	}

	unsold := 0
	matched := result.Matching()
	sold := make(map[string]bool, len(matched))
	for _, s := range matched {
		sold[s] = true
	}
	for _, s := range result.Sellers {
		if !sold[s] {
			unsold++
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if unsold > 0 {
		_, err := fmt.Fprintf(w, "%d seller(s) left unassigned\n", unsold)
		return err
	}
	return nil
}
