package core

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// ComputeMarketHash computes the canonical market hash used by clearing
// receipts and their validation.
//
// Formula: SHA256(nonce + "|B:" + buyers + "|S:" + seller:price pairs + "|V:" + buyer>seller=valuation pairs)
//
// Buyers and sellers are written in market order; valuations in buyer then
// seller order, with decimals in their canonical string form.
func ComputeMarketHash(m *Market, nonce string) string {
	var sb strings.Builder
	sb.WriteString(nonce)

	sb.WriteString("|B:")
	sb.WriteString(strings.Join(m.buyers, ","))

	sb.WriteString("|S:")
	for s, id := range m.sellers {
		if s > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s:%d", id, m.prices[s])
	}

	sb.WriteString("|V:")
	first := true
	for b, vals := range m.valuations {
		for _, v := range vals {
			if !first {
				sb.WriteByte(',')
			}
			first = false
			fmt.Fprintf(&sb, "%s>%s=%s", m.buyers[b], m.sellers[v.seller], v.value.String())
		}
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return fmt.Sprintf("%x", hash)
}

// ComputeOutcomeHash computes the clearing outcome hash.
//
// Formula: SHA256(nonce + "|" + rounds + "|" + sorted buyer:seller pairs + "|" + sorted seller:price pairs)
func ComputeOutcomeHash(assignments []Assignment, prices map[string]int64, rounds int, nonce string) string {
	pairs := make([]string, 0, len(assignments))
	for _, a := range assignments {
		pairs = append(pairs, a.Buyer+":"+a.Seller)
	}
	sort.Strings(pairs)

	// Sort sellers to ensure deterministic hash calculation
	sellers := make([]string, 0, len(prices))
	for seller := range prices {
		sellers = append(sellers, seller)
	}
	sort.Strings(sellers)

	data := fmt.Sprintf("%s|%d|%s|", nonce, rounds, strings.Join(pairs, ","))
	for i, seller := range sellers {
		if i > 0 {
			data += ","
		}
		data += fmt.Sprintf("%s:%d", seller, prices[seller])
	}

	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
