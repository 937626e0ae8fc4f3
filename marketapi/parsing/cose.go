package parsing

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/openclearing/marketapi"
)

// coseSign1Tag is the CBOR tag of a tagged COSE_Sign1 message.
const coseSign1Tag = 18

// ExtractCOSEPayload extracts the payload from a COSE_Sign1 4-element array,
// tagged or untagged.
// COSE_Sign1 structure: [protected, unprotected, payload, signature]
// Returns the payload bytes (element 2)
func ExtractCOSEPayload(coseBytes []byte) ([]byte, error) {
	var decoded any
	if err := cbor.Unmarshal(coseBytes, &decoded); err != nil {
		return nil, fmt.Errorf("parse COSE array: %w", err)
	}

	if tag, ok := decoded.(cbor.Tag); ok {
		if tag.Number != coseSign1Tag {
			return nil, fmt.Errorf("unexpected CBOR tag %d, want %d", tag.Number, coseSign1Tag)
		}
		decoded = tag.Content
	}

	coseArray, ok := decoded.([]any)
	if !ok {
		return nil, fmt.Errorf("invalid COSE_Sign1 structure: not an array")
	}
	if len(coseArray) != 4 {
		return nil, fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(coseArray))
	}

	payload, ok := coseArray[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid payload in COSE structure")
	}

	return payload, nil
}

// ParseReceipt decodes the receipt carried by a COSE_Sign1 message without
// checking its signature.
func ParseReceipt(receipt marketapi.ReceiptCOSE) (*marketapi.ClearingReceipt, error) {
	payload, err := ExtractCOSEPayload(receipt)
	if err != nil {
		return nil, err
	}
	return marketapi.DecodeReceipt(payload)
}
