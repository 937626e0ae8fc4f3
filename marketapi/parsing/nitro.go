package parsing

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/openclearing/marketapi"
)

// NitroAttestationDocument represents the raw CBOR structure from AWS Nitro Enclaves
type NitroAttestationDocument struct {
	ModuleID    string            `cbor:"module_id"`
	Digest      string            `cbor:"digest"`
	Timestamp   uint64            `cbor:"timestamp"`
	PCRs        map[uint64][]byte `cbor:"pcrs"`
	Certificate []byte            `cbor:"certificate"`
	CABundle    [][]byte          `cbor:"cabundle"`
	PublicKey   []byte            `cbor:"public_key"`
	UserData    []byte            `cbor:"user_data"`
	Nonce       []byte            `cbor:"nonce"`
}

// FormatPCR formats PCR bytes as hex string
func FormatPCR(pcrData []byte) string {
	if len(pcrData) == 0 {
		return ""
	}
	return fmt.Sprintf("%x", pcrData)
}

// ParseAttestation decodes a base64 COSE_Sign1 attestation document.
func ParseAttestation(attestationB64 string) (*NitroAttestationDocument, error) {
	coseBytes, err := base64.StdEncoding.DecodeString(attestationB64)
	if err != nil {
		return nil, fmt.Errorf("decode attestation: %w", err)
	}
	payload, err := ExtractCOSEPayload(coseBytes)
	if err != nil {
		return nil, err
	}

	var doc NitroAttestationDocument
	if err := cbor.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parse attestation document: %w", err)
	}
	return &doc, nil
}

// ReceiptUserData returns the receipt binding embedded in an attestation.
func (d *NitroAttestationDocument) ReceiptUserData() (*marketapi.ReceiptAttestationUserData, error) {
	if len(d.UserData) == 0 {
		return nil, fmt.Errorf("attestation carries no user data")
	}
	var data marketapi.ReceiptAttestationUserData
	if err := json.Unmarshal(d.UserData, &data); err != nil {
		return nil, fmt.Errorf("parse attestation user data: %w", err)
	}
	return &data, nil
}

// PCR returns the hex value of PCR index i, or "" when absent.
func (d *NitroAttestationDocument) PCR(i uint64) string {
	return FormatPCR(d.PCRs[i])
}
