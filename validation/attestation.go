package validation

import (
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/cloudx-io/openclearing/marketapi"
	"github.com/cloudx-io/openclearing/marketapi/parsing"
)

// AttestationValidationInput contains all inputs needed to validate a receipt attestation
type AttestationValidationInput struct {
	Attestation string                // Base64 COSE_Sign1, from ClearingResponse.Attestation
	Receipt     marketapi.ReceiptCOSE // The signed receipt the attestation should bind
	RunID       string
	KnownPCRs   []PCRSet
}

// ValidateReceiptAttestation validates the Nitro attestation of a receipt:
// PCRs, certificate chain, COSE signature, and that the attested user data
// names this run and this exact receipt.
func ValidateReceiptAttestation(input *AttestationValidationInput) (*AttestationValidationResult, error) {
	roots, err := nitroRoots()
	if err != nil {
		return nil, err
	}
	return validateReceiptAttestation(input, roots)
}

func validateReceiptAttestation(input *AttestationValidationInput, roots *x509.CertPool) (*AttestationValidationResult, error) {
	coseBytes, err := base64.StdEncoding.DecodeString(input.Attestation)
	if err != nil {
		return nil, fmt.Errorf("decode COSE bytes: %w", err)
	}

	attestationDoc, err := parsing.ParseAttestation(input.Attestation)
	if err != nil {
		return nil, fmt.Errorf("parse attestation document: %w", err)
	}

	result := &AttestationValidationResult{
		ValidationDetails: []string{},
	}

	// Validate PCRs
	pcrMatch, matchedSet := ValidatePCRs(attestationDoc, input.KnownPCRs)
	result.PCRsValid = pcrMatch
	if !pcrMatch {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("PCR0: %s (no match)", attestationDoc.PCR(0)))
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("PCR1: %s (no match)", attestationDoc.PCR(1)))
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("PCR2: %s (no match)", attestationDoc.PCR(2)))
	} else {
		result.ValidationDetails = append(result.ValidationDetails, "PCR measurements valid")
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Matched PCR set: #%d (commit: %s)",
			matchedSet, input.KnownPCRs[matchedSet].CommitHash))
	}

	// Validate certificate chain at the attestation timestamp
	attestedAt := time.UnixMilli(int64(attestationDoc.Timestamp))
	if len(attestationDoc.Certificate) == 0 {
		result.CertificateValid = false
		result.ValidationDetails = append(result.ValidationDetails, "Missing certificate")
	} else if len(attestationDoc.CABundle) == 0 {
		result.CertificateValid = false
		result.ValidationDetails = append(result.ValidationDetails, "Missing CA bundle")
	} else if err := validateCertificateChain(attestationDoc.Certificate, attestationDoc.CABundle, attestedAt, roots); err != nil {
		result.CertificateValid = false
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Certificate chain validation failed: %v", err))
	} else {
		result.CertificateValid = true
		result.ValidationDetails = append(result.ValidationDetails, "Certificate chain verified")
	}

	// Verify COSE signature
	if err := VerifyCOSESignature(coseBytes, attestationDoc.Certificate); err != nil {
		result.SignatureValid = false
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("COSE signature verification failed: %v", err))
	} else {
		result.SignatureValid = true
		result.ValidationDetails = append(result.ValidationDetails, "COSE signature verified")
	}

	result.ReceiptBindingValid = validateReceiptBinding(attestationDoc, input, result)

	return result, nil
}

func validateReceiptBinding(doc *parsing.NitroAttestationDocument, input *AttestationValidationInput, result *AttestationValidationResult) bool {
	binding, err := doc.ReceiptUserData()
	if err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Attestation user data unusable: %v", err))
		return false
	}

	valid := true
	if binding.RunID != input.RunID {
		result.ValidationDetails = append(result.ValidationDetails,
			fmt.Sprintf("Run ID mismatch: attested %s, receipt %s", binding.RunID, input.RunID))
		valid = false
	}
	if want := input.Receipt.Hash(); binding.ReceiptHash != want {
		result.ValidationDetails = append(result.ValidationDetails,
			fmt.Sprintf("Receipt hash mismatch: attested %s, computed %s", binding.ReceiptHash, want))
		valid = false
	}
	if valid {
		result.ValidationDetails = append(result.ValidationDetails, "Attestation binds this receipt")
	}
	return valid
}
