package core

import "fmt"

// ConstError is an error type that can be used to define immutable
// error constants.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

const (
	// ErrDisconnectedBuyer is returned when a buyer has no adjacent seller.
	ErrDisconnectedBuyer = ConstError("buyer has no adjacent seller")

	// ErrNoOverdemandedSeller is returned when a round ends with an imperfect
	// matching but no seller can be identified whose price should rise.
	ErrNoOverdemandedSeller = ConstError("no constricted or overdemanded seller found")

	// ErrNonTermination is returned when the round limit is exceeded.
	ErrNonTermination = ConstError("market did not clear within the round limit")

	// ErrEmptyMarket is returned when a market has no buyers.
	ErrEmptyMarket = ConstError("market has no buyers")
)

// DisconnectedBuyerError identifies the buyer that cannot be matched.
type DisconnectedBuyerError struct {
	Buyer string
}

func (e *DisconnectedBuyerError) Error() string {
	return fmt.Sprintf("%s: %q", ErrDisconnectedBuyer, e.Buyer)
}

func (e *DisconnectedBuyerError) Unwrap() error {
	return ErrDisconnectedBuyer
}

// NoOverdemandedSellerError carries the full state of the failing round.
type NoOverdemandedSellerError struct {
	Round    int
	Prices   map[string]int64
	Demand   []DemandEdge
	Matching map[string]string
}

func (e *NoOverdemandedSellerError) Error() string {
	return fmt.Sprintf("%s in round %d (prices=%v, demand=%v, matching=%v)",
		ErrNoOverdemandedSeller, e.Round, e.Prices, e.Demand, e.Matching)
}

func (e *NoOverdemandedSellerError) Unwrap() error {
	return ErrNoOverdemandedSeller
}

// NonTerminationError reports a run stopped by the round limit.
type NonTerminationError struct {
	Rounds    int
	MaxRounds int
}

func (e *NonTerminationError) Error() string {
	return fmt.Sprintf("%s: %d rounds run, limit %d", ErrNonTermination, e.Rounds, e.MaxRounds)
}

func (e *NonTerminationError) Unwrap() error {
	return ErrNonTermination
}
