package validation

import (
	"fmt"

	"github.com/cloudx-io/openclearing/core"
	"github.com/cloudx-io/openclearing/marketapi"
	"github.com/cloudx-io/openclearing/marketapi/parsing"
)

// ReceiptValidationInput contains all inputs needed for receipt validation
type ReceiptValidationInput struct {
	Receipt         marketapi.ReceiptCOSEBase64 // From ClearingResponse.Receipt
	SignerPublicKey string                      // PEM, from ClearingResponse.SignerPublicKey
	Market          *core.Market                // The market as submitted, with starting prices
}

// ValidateReceipt checks a clearing receipt and verifies:
// - The COSE signature matches the signer key
// - The market hash matches the submitted market
// - The outcome hash matches the receipt's assignments, prices and rounds
// - No price fell below its starting price
// - The assignment is a Walrasian equilibrium at the receipt's prices
//
// Returns:
//   - ReceiptValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed input)
func ValidateReceipt(input *ReceiptValidationInput) (*ReceiptValidationResult, error) {
	if input.Market == nil {
		return nil, fmt.Errorf("market is required")
	}

	receiptCOSE, err := input.Receipt.Decode()
	if err != nil {
		return nil, err
	}

	publicKey, err := ParsePublicKeyPEM(input.SignerPublicKey)
	if err != nil {
		return nil, err
	}

	receipt, err := parsing.ParseReceipt(receiptCOSE)
	if err != nil {
		return nil, fmt.Errorf("parse receipt: %w", err)
	}

	result := &ReceiptValidationResult{
		ValidationDetails: []string{},
		Receipt:           receipt,
	}

	// Verify COSE signature
	if err := VerifyReceiptSignature(receiptCOSE, publicKey); err != nil {
		result.SignatureValid = false
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("COSE signature verification failed: %v", err))
	} else {
		result.SignatureValid = true
		result.ValidationDetails = append(result.ValidationDetails, "COSE signature verified")
	}

	result.MarketHashValid = validateMarketHash(input.Market, receipt, result)
	result.OutcomeHashValid = validateOutcomeHash(receipt, result)
	result.PricesValid = validatePrices(input.Market, receipt, result)
	result.EquilibriumValid = validateEquilibrium(input.Market, receipt, result)

	return result, nil
}

func validateMarketHash(m *core.Market, receipt *marketapi.ClearingReceipt, result *ReceiptValidationResult) bool {
	computed := core.ComputeMarketHash(m, receipt.HashNonce)
	if computed != receipt.MarketHash {
		result.ValidationDetails = append(result.ValidationDetails,
			fmt.Sprintf("Market hash mismatch: receipt %s, computed %s", receipt.MarketHash, computed))
		return false
	}
	result.ValidationDetails = append(result.ValidationDetails, "Market hash matches submitted market")
	return true
}

func validateOutcomeHash(receipt *marketapi.ClearingReceipt, result *ReceiptValidationResult) bool {
	computed := core.ComputeOutcomeHash(receipt.Assignments, receipt.Prices, receipt.Rounds, receipt.HashNonce)
	if computed != receipt.OutcomeHash {
		result.ValidationDetails = append(result.ValidationDetails,
			fmt.Sprintf("Outcome hash mismatch: receipt %s, computed %s", receipt.OutcomeHash, computed))
		return false
	}
	result.ValidationDetails = append(result.ValidationDetails, "Outcome hash matches receipt contents")
	return true
}

func validatePrices(m *core.Market, receipt *marketapi.ClearingReceipt, result *ReceiptValidationResult) bool {
	valid := true
	for _, s := range m.Sellers() {
		start, _ := m.Price(s)
		final, ok := receipt.Prices[s]
		if !ok {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Seller %s missing from receipt prices", s))
			valid = false
			continue
		}
		if final < start {
			result.ValidationDetails = append(result.ValidationDetails,
				fmt.Sprintf("Seller %s price %d below starting price %d", s, final, start))
			valid = false
		}
	}
	if len(receipt.Prices) != len(m.Sellers()) {
		result.ValidationDetails = append(result.ValidationDetails,
			fmt.Sprintf("Receipt prices %d sellers, market has %d", len(receipt.Prices), len(m.Sellers())))
		valid = false
	}
	if valid {
		result.ValidationDetails = append(result.ValidationDetails, "Prices never fell below starting prices")
	}
	return valid
}

func validateEquilibrium(m *core.Market, receipt *marketapi.ClearingReceipt, result *ReceiptValidationResult) bool {
	matching := make(map[string]string, len(receipt.Assignments))
	for _, a := range receipt.Assignments {
		if _, dup := matching[a.Buyer]; dup {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Buyer %s assigned twice", a.Buyer))
			return false
		}
		matching[a.Buyer] = a.Seller
	}

	if err := core.VerifyEquilibrium(m, matching, receipt.Prices); err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Equilibrium check failed: %v", err))
		return false
	}
	result.ValidationDetails = append(result.ValidationDetails, "Assignment is an equilibrium at receipt prices")
	return true
}
