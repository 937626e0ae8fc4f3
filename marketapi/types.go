// Package marketapi defines the wire formats shared by the clearing CLI, the
// clearing server and receipt validation.
package marketapi

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/openclearing/core"
)

// BuyerSpec describes a buyer node.
type BuyerSpec struct {
	ID string `json:"id"`
}

// SellerSpec describes a seller node and its optional starting price.
type SellerSpec struct {
	ID    string `json:"id"`
	Price int64  `json:"price,omitempty"`
}

// ValuationSpec is the value a buyer assigns to a seller. Value accepts JSON
// numbers or decimal strings.
type ValuationSpec struct {
	Buyer  string          `json:"buyer"`
	Seller string          `json:"seller"`
	Value  decimal.Decimal `json:"value"`
}

// MarketDescription is the JSON form of an assignment market. Buyer and
// seller order is preserved and used for tie-breaking.
type MarketDescription struct {
	Buyers     []BuyerSpec     `json:"buyers"`
	Sellers    []SellerSpec    `json:"sellers"`
	Valuations []ValuationSpec `json:"valuations"`
}

// BuildMarket converts the description into a core.Market. A buyer-seller
// pair may be valued only once. It does not check that every buyer has a
// seller; clearing does that.
func (d *MarketDescription) BuildMarket() (*core.Market, error) {
	m := core.NewMarket()
	for _, b := range d.Buyers {
		if err := m.AddBuyer(b.ID); err != nil {
			return nil, err
		}
	}
	for _, s := range d.Sellers {
		if err := m.AddSeller(s.ID, s.Price); err != nil {
			return nil, err
		}
	}
	seen := make(map[[2]string]bool, len(d.Valuations))
	for _, v := range d.Valuations {
		pair := [2]string{v.Buyer, v.Seller}
		if seen[pair] {
			return nil, fmt.Errorf("duplicate valuation %s-%s", v.Buyer, v.Seller)
		}
		seen[pair] = true
		if err := m.SetValuation(v.Buyer, v.Seller, v.Value); err != nil {
			return nil, fmt.Errorf("valuation %s-%s: %w", v.Buyer, v.Seller, err)
		}
	}
	return m, nil
}

// DescribeMarket is the inverse of BuildMarket, using current prices.
func DescribeMarket(m *core.Market) MarketDescription {
	d := MarketDescription{
		Buyers:  make([]BuyerSpec, 0, len(m.Buyers())),
		Sellers: make([]SellerSpec, 0, len(m.Sellers())),
	}
	for _, b := range m.Buyers() {
		d.Buyers = append(d.Buyers, BuyerSpec{ID: b})
		for _, s := range m.Neighbors(b) {
			v, _ := m.Valuation(b, s)
			d.Valuations = append(d.Valuations, ValuationSpec{Buyer: b, Seller: s, Value: v})
		}
	}
	for _, s := range m.Sellers() {
		p, _ := m.Price(s)
		d.Sellers = append(d.Sellers, SellerSpec{ID: s, Price: p})
	}
	return d
}

// RoundRecord is the JSON form of a single round trace.
type RoundRecord struct {
	Round    int               `json:"round"`
	Prices   map[string]int64  `json:"prices"`
	Demand   []core.DemandEdge `json:"demand"`
	Matching map[string]string `json:"matching"`
}

// NewRoundRecord converts a core round trace.
func NewRoundRecord(trace *core.RoundTrace) RoundRecord {
	return RoundRecord{
		Round:    trace.Round,
		Prices:   trace.Prices,
		Demand:   trace.Demand,
		Matching: trace.Matching,
	}
}

// ClearingOutcome is the JSON form of a converged clearing result.
type ClearingOutcome struct {
	Assignments []core.Assignment `json:"assignments"`
	Prices      map[string]int64  `json:"prices"`
	Rounds      int               `json:"rounds"`
}

// NewClearingOutcome converts a core clearing result.
func NewClearingOutcome(result *core.ClearingResult) ClearingOutcome {
	return ClearingOutcome{
		Assignments: result.Assignments,
		Prices:      result.Prices,
		Rounds:      result.Rounds,
	}
}

// ClearingRequest is sent to the clearing server.
type ClearingRequest struct {
	Type      string            `json:"type"`
	MarketID  string            `json:"market_id"`
	Market    MarketDescription `json:"market"`
	MaxRounds int               `json:"max_rounds,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// ClearingResponse is returned by the clearing server.
type ClearingResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message"`

	RunID   string           `json:"run_id,omitempty"`
	Outcome *ClearingOutcome `json:"outcome,omitempty"`

	// Receipt is a COSE_Sign1 message over the CBOR-encoded ClearingReceipt
	Receipt ReceiptCOSEBase64 `json:"receipt,omitempty"`
	// SignerPublicKey is the PEM-encoded ECDSA P-384 key that signed Receipt
	SignerPublicKey string `json:"signer_public_key,omitempty"`
	// Attestation is an optional Nitro attestation embedding the receipt hash
	Attestation string `json:"attestation,omitempty"`

	ProcessingTime int64 `json:"processing_time_ms"`
}

// ClearingReceipt is the signed record of a clearing outcome.
type ClearingReceipt struct {
	RunID       string            `json:"run_id"`
	MarketID    string            `json:"market_id"`
	MarketHash  string            `json:"market_hash"`
	OutcomeHash string            `json:"outcome_hash"`
	HashNonce   string            `json:"hash_nonce"`
	Assignments []core.Assignment `json:"assignments"`
	Prices      map[string]int64  `json:"prices"`
	Rounds      int               `json:"rounds"`
	Timestamp   int64             `json:"timestamp"`
}

// ReceiptAttestationUserData is embedded in a Nitro attestation of a receipt.
type ReceiptAttestationUserData struct {
	RunID       string `json:"run_id"`
	ReceiptHash string `json:"receipt_hash"`
}

var receiptEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("marketapi: invalid CBOR encoding options: %v", err))
	}
	return em
}()

// EncodeReceipt encodes a receipt as deterministic CBOR.
func EncodeReceipt(r *ClearingReceipt) ([]byte, error) {
	data, err := receiptEncMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode receipt: %w", err)
	}
	return data, nil
}

// DecodeReceipt decodes a CBOR receipt.
func DecodeReceipt(data []byte) (*ClearingReceipt, error) {
	var r ClearingReceipt
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &r, nil
}

// ReceiptCOSE is a raw COSE_Sign1 receipt.
type ReceiptCOSE []byte

// Base64 encodes the receipt for JSON transport.
func (r ReceiptCOSE) Base64() ReceiptCOSEBase64 {
	return ReceiptCOSEBase64(base64.StdEncoding.EncodeToString(r))
}

// Hash is the hex SHA-256 of the signed receipt, as embedded in its
// attestation.
func (r ReceiptCOSE) Hash() string {
	return fmt.Sprintf("%x", sha256.Sum256(r))
}

// ReceiptCOSEBase64 is a base64-encoded COSE_Sign1 receipt.
type ReceiptCOSEBase64 string

// Decode returns the raw COSE bytes.
func (r ReceiptCOSEBase64) Decode() (ReceiptCOSE, error) {
	data, err := base64.StdEncoding.DecodeString(string(r))
	if err != nil {
		return nil, fmt.Errorf("decode base64 receipt: %w", err)
	}
	return ReceiptCOSE(data), nil
}
