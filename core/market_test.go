package core

import (
	"errors"
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestMarket_OrderIsInsertionOrder(t *testing.T) {
	m := newTestMarket(t, []string{"b2", "b1"}, []string{"s3", "s1", "s2"}, []edge{
		{"b2", "s2", 1}, {"b2", "s3", 2}, {"b2", "s1", 3},
	})

	check.Equal(t, []string{"b2", "b1"}, m.Buyers())
	check.Equal(t, []string{"s3", "s1", "s2"}, m.Sellers())

	// Neighbors follow seller order, not valuation insertion order
	check.Equal(t, []string{"s3", "s1", "s2"}, m.Neighbors("b2"))
	check.Equal(t, 0, len(m.Neighbors("b1")))
	check.Equal(t, 0, len(m.Neighbors("unknown")))
}

func TestMarket_RejectsDuplicateIDs(t *testing.T) {
	m := NewMarket()
	check.NoError(t, m.AddBuyer("x"))

	check.Error(t, m.AddBuyer("x"))
	check.Error(t, m.AddSeller("x", 0))
	check.Error(t, m.AddBuyer(""))

	check.NoError(t, m.AddSeller("y", 0))
	check.Error(t, m.AddBuyer("y"))
}

func TestMarket_RejectsNegativeInitialPrice(t *testing.T) {
	m := NewMarket()

	check.Error(t, m.AddSeller("s1", -1))
	check.False(t, m.IsSeller("s1"))
}

func TestMarket_SetValuation(t *testing.T) {
	m := newTestMarket(t, []string{"b1"}, []string{"s1"}, nil)

	check.Error(t, m.SetValuation("nope", "s1", decimal.NewFromInt(1)))
	check.Error(t, m.SetValuation("b1", "nope", decimal.NewFromInt(1)))
	check.Error(t, m.SetValuation("s1", "b1", decimal.NewFromInt(1)))

	check.NoError(t, m.SetValuation("b1", "s1", decimal.NewFromInt(4)))
	check.NoError(t, m.SetValuation("b1", "s1", decimal.RequireFromString("7.5")))

	v, ok := m.Valuation("b1", "s1")
	check.True(t, ok)
	check.True(t, v.Equal(decimal.RequireFromString("7.5")))
	check.Equal(t, 1, m.EdgeCount())
}

func TestMarket_Prices(t *testing.T) {
	m := NewMarket()
	check.NoError(t, m.AddSeller("s1", 0))
	check.NoError(t, m.AddSeller("s2", 5))

	p, ok := m.Price("s2")
	check.True(t, ok)
	check.Equal(t, int64(5), p)

	_, ok = m.Price("s3")
	check.False(t, ok)

	check.Equal(t, map[string]int64{"s1": 0, "s2": 5}, m.Prices())
}

func TestMarket_Validate(t *testing.T) {
	check.True(t, errors.Is(NewMarket().Validate(), ErrEmptyMarket))

	m := newTestMarket(t, []string{"b1", "b2"}, []string{"s1"}, []edge{{"b1", "s1", 1}})
	err := m.Validate()

	var disconnected *DisconnectedBuyerError
	check.True(t, errors.As(err, &disconnected))
	check.Equal(t, "b2", disconnected.Buyer)
	check.True(t, errors.Is(err, ErrDisconnectedBuyer))

	check.NoError(t, scenarioA(t).Validate())
}

func TestMarket_ValuationRange(t *testing.T) {
	_, _, ok := NewMarket().ValuationRange()
	check.False(t, ok)

	lowest, highest, ok := scenarioA(t).ValuationRange()
	check.True(t, ok)
	check.True(t, lowest.Equal(decimal.NewFromInt(8)))
	check.True(t, highest.Equal(decimal.NewFromInt(10)))
}

func TestMarket_CloneIsIndependent(t *testing.T) {
	m := scenarioB(t)
	c := m.Clone()

	c.raisePrice(0)
	check.NoError(t, c.SetValuation("b1", "s2", decimal.NewFromInt(3)))

	p, _ := m.Price("s1")
	check.Equal(t, int64(0), p)
	v, _ := m.Valuation("b1", "s2")
	check.True(t, v.Equal(decimal.Zero))

	p, _ = c.Price("s1")
	check.Equal(t, int64(1), p)
}
