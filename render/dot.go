// Package render writes clearing results for people: Graphviz DOT drawings
// and plain-text summaries.
package render

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/cloudx-io/openclearing/core"
)

// Node and edge styling for market drawings.
const (
	BuyerColor   = "red"
	SellerColor  = "skyblue"
	MatchedColor = "blue"
	MatchedWidth = 2
)

// WriteDOT draws the market as an undirected Graphviz graph. Buyers are laid
// out on the left, sellers on the right with their current price, and every
// edge is labelled with its valuation. Edges in result's matching are drawn
// in MatchedColor; result may be nil when clearing failed.
func WriteDOT(w io.Writer, m *core.Market, result *core.ClearingResult) error {
	var matched map[string]string
	if result != nil {
		matched = result.Matching()
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "graph market {")
	fmt.Fprintln(bw, "  rankdir=LR;")
	fmt.Fprintln(bw, "  node [style=filled];")

	fmt.Fprintln(bw, "  subgraph buyers {")
	fmt.Fprintln(bw, "    rank=same;")
	for _, b := range m.Buyers() {
		fmt.Fprintf(bw, "    %s [fillcolor=%s];\n", strconv.Quote(b), BuyerColor)
	}
	fmt.Fprintln(bw, "  }")

	fmt.Fprintln(bw, "  subgraph sellers {")
	fmt.Fprintln(bw, "    rank=same;")
	for _, s := range m.Sellers() {
		price, _ := m.Price(s)
		label := fmt.Sprintf("%s\nprice=%d", s, price)
		fmt.Fprintf(bw, "    %s [fillcolor=%s, label=%s];\n", strconv.Quote(s), SellerColor, strconv.Quote(label))
	}
	fmt.Fprintln(bw, "  }")

	for _, b := range m.Buyers() {
		for _, s := range m.Neighbors(b) {
			v, _ := m.Valuation(b, s)
			attrs := "label=" + strconv.Quote(v.String())
			if matched[b] == s {
				attrs += fmt.Sprintf(", color=%s, penwidth=%d", MatchedColor, MatchedWidth)
			}
			fmt.Fprintf(bw, "  %s -- %s [%s];\n", strconv.Quote(b), strconv.Quote(s), attrs)
		}
	}
	fmt.Fprintln(bw, "}")

	return bw.Flush()
}
