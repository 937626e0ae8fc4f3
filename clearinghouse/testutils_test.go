package main

import (
	"fmt"
	"testing"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/openclearing/marketapi"
)

// MockEnclaveHandle implements the Attest method for testing
type MockEnclaveHandle struct {
	AttestFunc func(options enclave.AttestationOptions) ([]byte, error)
	calls      int
}

func (m *MockEnclaveHandle) Attest(options enclave.AttestationOptions) ([]byte, error) {
	m.calls++
	if m.AttestFunc != nil {
		return m.AttestFunc(options)
	}
	return nil, fmt.Errorf("mock not configured")
}

// CreateMockEnclave creates a mock enclave handle that wraps the user data in
// a minimal Nitro-shaped attestation document
func CreateMockEnclave(t *testing.T) *MockEnclaveHandle {
	t.Helper()
	return &MockEnclaveHandle{
		AttestFunc: func(options enclave.AttestationOptions) ([]byte, error) {
			nestedDoc := map[string]any{
				"module_id": "test-enclave-12345",
				"digest":    "SHA384",
				"timestamp": uint64(1234567890),
				"pcrs": map[uint64][]byte{
					0: {0x3b, 0x4c},
					1: {0x4b, 0x4d},
					2: {0x2b, 0xdd},
				},
				"certificate": []byte("test-certificate-data"),
				"cabundle":    [][]byte{[]byte("test-ca-cert")},
				"user_data":   options.UserData,
				"nonce":       options.Nonce,
			}

			nestedBytes, err := cbor.Marshal(nestedDoc)
			if err != nil {
				return nil, err
			}

			// AWS Nitro 4-element array format: [header, metadata, nested_doc, signature]
			return cbor.Marshal([]any{
				[]byte{0x01, 0x02, 0x03},
				map[string]any{},
				nestedBytes,
				[]byte{0x04, 0x05, 0x06},
			})
		},
	}
}

// newTestSigner creates a ReceiptSigner or fails the test
func newTestSigner(t *testing.T) *ReceiptSigner {
	t.Helper()
	signer, err := NewReceiptSigner()
	if err != nil {
		t.Fatalf("NewReceiptSigner() error = %v", err)
	}
	return signer
}

// competitionRequest is a two-buyer market where s1's price must rise to 10
func competitionRequest() marketapi.ClearingRequest {
	ten, zero := decimal.NewFromInt(10), decimal.NewFromInt(0)
	return marketapi.ClearingRequest{
		Type:     "clearing_request",
		MarketID: "market-42",
		Market: marketapi.MarketDescription{
			Buyers:  []marketapi.BuyerSpec{{ID: "b1"}, {ID: "b2"}},
			Sellers: []marketapi.SellerSpec{{ID: "s1"}, {ID: "s2"}},
			Valuations: []marketapi.ValuationSpec{
				{Buyer: "b1", Seller: "s1", Value: ten},
				{Buyer: "b1", Seller: "s2", Value: zero},
				{Buyer: "b2", Seller: "s1", Value: ten},
				{Buyer: "b2", Seller: "s2", Value: zero},
			},
		},
	}
}
