package validation

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/shopspring/decimal"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/openclearing/core"
	"github.com/cloudx-io/openclearing/marketapi"
)

const testNonce = "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"

// competitiveMarket is a two-buyer market where s1's price must rise to 10
func competitiveMarket(t *testing.T) *core.Market {
	t.Helper()
	m := core.NewMarket()
	for _, b := range []string{"b1", "b2"} {
		assert.NoError(t, m.AddBuyer(b))
	}
	for _, s := range []string{"s1", "s2"} {
		assert.NoError(t, m.AddSeller(s, 0))
	}
	for _, b := range []string{"b1", "b2"} {
		assert.NoError(t, m.SetValuation(b, "s1", decimal.NewFromInt(10)))
		assert.NoError(t, m.SetValuation(b, "s2", decimal.NewFromInt(0)))
	}
	return m
}

// clearedReceipt clears a copy of m and builds the receipt a clearing server would sign
func clearedReceipt(t *testing.T, m *core.Market) *marketapi.ClearingReceipt {
	t.Helper()
	marketHash := core.ComputeMarketHash(m, testNonce)
	result, err := core.RunClearing(context.Background(), m.Clone(), core.Options{})
	assert.NoError(t, err)

	return &marketapi.ClearingReceipt{
		RunID:       "run-1",
		MarketID:    "market-42",
		MarketHash:  marketHash,
		OutcomeHash: core.ComputeOutcomeHash(result.Assignments, result.Prices, result.Rounds, testNonce),
		HashNonce:   testNonce,
		Assignments: result.Assignments,
		Prices:      result.Prices,
		Rounds:      result.Rounds,
		Timestamp:   1700000000,
	}
}

func newTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	assert.NoError(t, err)
	return key
}

func publicKeyPEM(t *testing.T, key *ecdsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	assert.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

// signReceipt signs a receipt the same way the clearing server does
func signReceipt(t *testing.T, key *ecdsa.PrivateKey, receipt *marketapi.ClearingReceipt) marketapi.ReceiptCOSE {
	t.Helper()
	payload, err := marketapi.EncodeReceipt(receipt)
	assert.NoError(t, err)

	signer, err := cose.NewSigner(cose.AlgorithmES384, key)
	assert.NoError(t, err)

	msg := cose.NewSign1Message()
	msg.Headers.Protected[cose.HeaderLabelAlgorithm] = cose.AlgorithmES384
	msg.Payload = payload
	assert.NoError(t, msg.Sign(rand.Reader, nil, signer))

	data, err := msg.MarshalCBOR()
	assert.NoError(t, err)
	return marketapi.ReceiptCOSE(data)
}

// testPKI is a throwaway root CA plus an enclave leaf certificate
type testPKI struct {
	roots   *x509.CertPool
	rootDER []byte
	leafDER []byte
	leafKey *ecdsa.PrivateKey
}

func newTestPKI(t *testing.T, notBefore, notAfter time.Time) *testPKI {
	t.Helper()
	rootKey := newTestKey(t)
	rootTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test.nitro-enclaves"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTemplate, rootTemplate, &rootKey.PublicKey, rootKey)
	assert.NoError(t, err)
	rootCert, err := x509.ParseCertificate(rootDER)
	assert.NoError(t, err)

	leafKey := newTestKey(t)
	leafTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "i-0123456789abcdef0.test"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, rootCert, &leafKey.PublicKey, rootKey)
	assert.NoError(t, err)

	roots := x509.NewCertPool()
	roots.AddCert(rootCert)
	return &testPKI{roots: roots, rootDER: rootDER, leafDER: leafDER, leafKey: leafKey}
}

// attest builds an untagged Nitro-style COSE_Sign1 attestation signed by the leaf key
func (p *testPKI) attest(t *testing.T, at time.Time, pcrs map[uint64][]byte, userData []byte) string {
	t.Helper()
	doc := map[string]any{
		"module_id":   "i-0123456789abcdef0-enc0123456789abcdef",
		"digest":      "SHA384",
		"timestamp":   uint64(at.UnixMilli()),
		"pcrs":        pcrs,
		"certificate": p.leafDER,
		"cabundle":    [][]byte{p.rootDER},
		"user_data":   userData,
		"nonce":       []byte("nonce"),
	}
	payload, err := cbor.Marshal(doc)
	assert.NoError(t, err)

	protected, err := cbor.Marshal(map[int]int{1: -35}) // alg: ES384
	assert.NoError(t, err)

	sigStructure, err := cbor.Marshal([]any{"Signature1", protected, []byte{}, payload})
	assert.NoError(t, err)

	signer, err := cose.NewSigner(cose.AlgorithmES384, p.leafKey)
	assert.NoError(t, err)
	signature, err := signer.Sign(rand.Reader, sigStructure)
	assert.NoError(t, err)

	coseBytes, err := cbor.Marshal([]any{protected, map[any]any{}, payload, signature})
	assert.NoError(t, err)
	return base64.StdEncoding.EncodeToString(coseBytes)
}

func receiptUserData(t *testing.T, runID string, receipt marketapi.ReceiptCOSE) []byte {
	t.Helper()
	data, err := json.Marshal(marketapi.ReceiptAttestationUserData{RunID: runID, ReceiptHash: receipt.Hash()})
	assert.NoError(t, err)
	return data
}
