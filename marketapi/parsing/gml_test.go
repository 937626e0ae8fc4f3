package parsing

import (
	"errors"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/openclearing/core"
)

func TestParseGML_ScenarioB(t *testing.T) {
	m, err := LoadMarket("testdata/scenario_b.gml")
	assert.NoError(t, err)

	check.Equal(t, []string{"b1", "b2"}, m.Buyers())
	check.Equal(t, []string{"s1", "s2"}, m.Sellers())
	check.Equal(t, map[string]int64{"s1": 0, "s2": 0}, m.Prices())

	// Edge written seller-first is still attached to the buyer
	v, ok := m.Valuation("b2", "s1")
	check.True(t, ok)
	check.True(t, v.Equal(decimal.NewFromInt(10)))
	check.Equal(t, 4, m.EdgeCount())
}

func TestParseGML_CompactSyntax(t *testing.T) {
	src := `graph [ directed 0
		node [ id 7 label "alice" bipartite 1 ]
		node [ id 3 bipartite 0 price 4 ]
		edge [ source 7 target 3 valuation 12.5 ]
	]`

	m, err := ParseGML(strings.NewReader(src))
	assert.NoError(t, err)

	// A node without a label is named by its id
	check.Equal(t, []string{"3"}, m.Sellers())
	price, _ := m.Price("3")
	check.Equal(t, int64(4), price)
	v, ok := m.Valuation("alice", "3")
	check.True(t, ok)
	check.True(t, v.Equal(decimal.RequireFromString("12.5")))
}

func TestParseGML_EscapedLabel(t *testing.T) {
	src := `graph [
		node [ id 0 label "Tom &amp; Jerry" bipartite 1 ]
		node [ id 1 label "house" bipartite 0 ]
		edge [ source 0 target 1 valuation 1 ]
	]`

	m, err := ParseGML(strings.NewReader(src))
	assert.NoError(t, err)

	check.Equal(t, []string{"Tom & Jerry"}, m.Buyers())
}

func TestParseGML_BuyerPriceIgnored(t *testing.T) {
	src := `graph [
		node [ id 0 label "b" bipartite 1 price 9 ]
		node [ id 1 label "s" bipartite 0 ]
		edge [ source 0 target 1 valuation 1 ]
	]`

	m, err := ParseGML(strings.NewReader(src))
	assert.NoError(t, err)

	check.Equal(t, map[string]int64{"s": 0}, m.Prices())
}

func TestParseGML_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{
			name:    "no graph",
			src:     `creator "nobody"`,
			wantMsg: "no graph found",
		},
		{
			name:    "same side edge",
			src:     `graph [ node [ id 0 bipartite 1 ] node [ id 1 bipartite 1 ] edge [ source 0 target 1 valuation 3 ] ]`,
			wantMsg: "same side",
		},
		{
			name:    "unknown node",
			src:     `graph [ node [ id 0 bipartite 1 ] edge [ source 0 target 5 valuation 3 ] ]`,
			wantMsg: "unknown node 5",
		},
		{
			name:    "missing valuation",
			src:     `graph [ node [ id 0 bipartite 1 ] node [ id 1 bipartite 0 ] edge [ source 0 target 1 ] ]`,
			wantMsg: "no valuation",
		},
		{
			name:    "duplicate id",
			src:     `graph [ node [ id 0 bipartite 1 ] node [ id 0 bipartite 0 ] ]`,
			wantMsg: "duplicate node id 0",
		},
		{
			name:    "duplicate label",
			src:     `graph [ node [ id 0 label "x" bipartite 1 ] node [ id 1 label "x" bipartite 0 ] ]`,
			wantMsg: "line 1",
		},
		{
			name:    "duplicate edge",
			src:     `graph [ node [ id 0 bipartite 1 ] node [ id 1 bipartite 0 ] edge [ source 0 target 1 valuation 1 ] edge [ source 1 target 0 valuation 2 ] ]`,
			wantMsg: "duplicate edge",
		},
		{
			name:    "negative price",
			src:     `graph [ node [ id 0 bipartite 0 price -2 ] ]`,
			wantMsg: "negative",
		},
		{
			name:    "fractional price",
			src:     `graph [ node [ id 0 bipartite 0 price 1.5 ] ]`,
			wantMsg: "integer",
		},
		{
			name:    "missing bipartite",
			src:     `graph [ node [ id 0 label "x" ] ]`,
			wantMsg: "no bipartite",
		},
		{
			name:    "bad bipartite",
			src:     `graph [ node [ id 0 bipartite 2 ] ]`,
			wantMsg: "bipartite must be 0 or 1",
		},
		{
			name:    "unterminated list",
			src:     "graph [\n node [ id 0 bipartite 1 ]\n",
			wantMsg: "missing ']'",
		},
		{
			name:    "unterminated string",
			src:     `graph [ node [ id 0 label "x bipartite 1 ] ]`,
			wantMsg: "unterminated string",
		},
		{
			name:    "bad number",
			src:     "graph [\n node [ id zero ]\n]",
			wantMsg: `line 2: invalid number "zero"`,
		},
		{
			name:    "stray bracket",
			src:     `graph [ ] ]`,
			wantMsg: "unexpected ']'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGML(strings.NewReader(tt.src))
			assert.NotNil(t, err)
			check.True(t, strings.Contains(err.Error(), tt.wantMsg))
		})
	}
}

func TestParseGML_CommentsAndLineNumbers(t *testing.T) {
	src := "# header comment\ngraph [\n  # nodes follow\n  node [ id 0 bipartite 1 ]\n  edge [ source 0 target 9 valuation 1 ]\n]\n"

	_, err := ParseGML(strings.NewReader(src))

	assert.NotNil(t, err)
	check.True(t, strings.HasPrefix(err.Error(), "line 5:"))
}

func TestLoadMarket_DisconnectedBuyerParsesButFailsValidation(t *testing.T) {
	m, err := LoadMarket("testdata/disconnected.gml")
	assert.NoError(t, err)

	check.True(t, errors.Is(m.Validate(), core.ErrDisconnectedBuyer))
}
