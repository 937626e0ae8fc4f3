package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/cloudx-io/openclearing/core"
	"github.com/cloudx-io/openclearing/marketapi"
)

// tracePrinter writes one line per round:
//
//	Round 3: prices={s1: 3, s2: 0}, demand=[(b1, s1), (b2, s1)], matching={b1: s1}
type tracePrinter struct {
	w       io.Writer
	buyers  []string
	sellers []string
}

func newTracePrinter(w io.Writer, m *core.Market) *tracePrinter {
	return &tracePrinter{w: w, buyers: m.Buyers(), sellers: m.Sellers()}
}

func (p *tracePrinter) TraceRound(trace *core.RoundTrace) {
	prices := make([]string, 0, len(p.sellers))
	for _, s := range p.sellers {
		prices = append(prices, fmt.Sprintf("%s: %d", s, trace.Prices[s]))
	}
	demand := make([]string, len(trace.Demand))
	for i, e := range trace.Demand {
		demand[i] = e.String()
	}
	pairs := make([]string, 0, len(trace.Matching))
	for _, b := range p.buyers {
		if s, ok := trace.Matching[b]; ok {
			pairs = append(pairs, b+": "+s)
		}
	}

	fmt.Fprintf(p.w, "Round %d: prices={%s}, demand=[%s], matching={%s}\n",
		trace.Round, strings.Join(prices, ", "), strings.Join(demand, ", "), strings.Join(pairs, ", "))
}

// recordTracer keeps every round for JSON output.
type recordTracer struct {
	rounds []marketapi.RoundRecord
}

func (r *recordTracer) TraceRound(trace *core.RoundTrace) {
	r.rounds = append(r.rounds, marketapi.NewRoundRecord(trace))
}
