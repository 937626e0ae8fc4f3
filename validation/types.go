package validation

import "github.com/cloudx-io/openclearing/marketapi"

// ReceiptValidationResult contains the results of checking a clearing receipt
type ReceiptValidationResult struct {
	SignatureValid    bool
	MarketHashValid   bool
	OutcomeHashValid  bool
	PricesValid       bool
	EquilibriumValid  bool
	ValidationDetails []string

	// Receipt is the decoded receipt, whether or not it validated
	Receipt *marketapi.ClearingReceipt
}

// IsValid returns true if all receipt validation checks passed
func (r *ReceiptValidationResult) IsValid() bool {
	return r.SignatureValid && r.MarketHashValid && r.OutcomeHashValid && r.PricesValid && r.EquilibriumValid
}

// AttestationValidationResult contains the results of checking the Nitro
// attestation that accompanies a receipt
type AttestationValidationResult struct {
	PCRsValid           bool
	CertificateValid    bool
	SignatureValid      bool
	ReceiptBindingValid bool
	ValidationDetails   []string
}

// IsValid returns true if all attestation validation checks passed
func (r *AttestationValidationResult) IsValid() bool {
	return r.PCRsValid && r.CertificateValid && r.SignatureValid && r.ReceiptBindingValid
}

// PCRSet represents a known-good set of PCR measurements
type PCRSet struct {
	PCR0       string `json:"pcr0"`
	PCR1       string `json:"pcr1"`
	PCR2       string `json:"pcr2"`
	CommitHash string `json:"commit_hash"` // repository commit used to build the enclave image
}

// PCRConfig represents the PCR configuration file structure
type PCRConfig struct {
	PCRSets []PCRSet `json:"pcr_sets"`
}
