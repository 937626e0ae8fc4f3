package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/veraison/go-cose"

	"github.com/cloudx-io/openclearing/marketapi"
)

// ReceiptSigner holds the server's ECDSA P-384 signing key. Receipts are
// COSE_Sign1 messages signed with ES384.
type ReceiptSigner struct {
	privateKey *ecdsa.PrivateKey // Keep private - sensitive!
	PublicKey  *ecdsa.PublicKey
	signer     cose.Signer
}

// NewReceiptSigner creates a ReceiptSigner with a freshly generated key
func NewReceiptSigner() (*ReceiptSigner, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	signer, err := cose.NewSigner(cose.AlgorithmES384, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create COSE signer: %w", err)
	}

	return &ReceiptSigner{
		privateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
		signer:     signer,
	}, nil
}

// PublicKeyPEM returns the public key in PEM format
func (rs *ReceiptSigner) PublicKeyPEM() (string, error) {
	derBytes, err := x509.MarshalPKIXPublicKey(rs.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	pemBlock := &pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: derBytes,
	}

	return string(pem.EncodeToMemory(pemBlock)), nil
}

// Sign encodes the receipt as deterministic CBOR and wraps it in a tagged
// COSE_Sign1 message.
func (rs *ReceiptSigner) Sign(receipt *marketapi.ClearingReceipt) (marketapi.ReceiptCOSE, error) {
	payload, err := marketapi.EncodeReceipt(receipt)
	if err != nil {
		return nil, err
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected[cose.HeaderLabelAlgorithm] = cose.AlgorithmES384
	msg.Payload = payload

	if err := msg.Sign(rand.Reader, nil, rs.signer); err != nil {
		return nil, fmt.Errorf("failed to sign receipt: %w", err)
	}

	data, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed receipt: %w", err)
	}
	return marketapi.ReceiptCOSE(data), nil
}
