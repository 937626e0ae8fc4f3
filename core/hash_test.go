package core

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

func TestComputeMarketHash(t *testing.T) {
	m := scenarioA(t)
	nonce := "test_nonce_456"

	hash := ComputeMarketHash(m, nonce)

	// Verify hash is 64 characters (SHA256 hex encoding)
	if len(hash) != 64 {
		t.Errorf("ComputeMarketHash() hash length = %d, want 64", len(hash))
	}
	if !isHex(hash) {
		t.Errorf("ComputeMarketHash() contains non-hex characters: %s", hash)
	}

	// Same inputs should produce same hash (deterministic)
	if hash != ComputeMarketHash(m, nonce) {
		t.Errorf("ComputeMarketHash() not deterministic")
	}

	// Verify exact hash calculation
	expectedData := nonce + "|B:b1,b2|S:s1:0,s2:0|V:b1>s1=10,b1>s2=8,b2>s1=8,b2>s2=10"
	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte(expectedData)))
	if hash != expectedHash {
		t.Errorf("ComputeMarketHash() = %v, want %v", hash, expectedHash)
	}
}

func TestComputeMarketHash_DifferentInputs(t *testing.T) {
	nonce := "n"
	base := ComputeMarketHash(scenarioA(t), nonce)

	if base == ComputeMarketHash(scenarioA(t), "other") {
		t.Errorf("Different nonces should produce different hashes")
	}

	priced := scenarioA(t)
	priced.raisePrice(1)
	if base == ComputeMarketHash(priced, nonce) {
		t.Errorf("Different prices should produce different hashes")
	}

	revalued := scenarioA(t)
	if err := revalued.SetValuation("b2", "s1", decimal.NewFromInt(9)); err != nil {
		t.Fatal(err)
	}
	if base == ComputeMarketHash(revalued, nonce) {
		t.Errorf("Different valuations should produce different hashes")
	}
}

func TestComputeMarketHash_DecimalCanonicalForm(t *testing.T) {
	a := newTestMarket(t, []string{"b1"}, []string{"s1"}, nil)
	b := newTestMarket(t, []string{"b1"}, []string{"s1"}, nil)
	if err := a.SetValuation("b1", "s1", decimal.RequireFromString("2.50")); err != nil {
		t.Fatal(err)
	}
	if err := b.SetValuation("b1", "s1", decimal.NewFromFloat(2.5)); err != nil {
		t.Fatal(err)
	}

	if ComputeMarketHash(a, "n") != ComputeMarketHash(b, "n") {
		t.Errorf("Equal valuations written differently should produce the same hash")
	}
}

func TestComputeOutcomeHash(t *testing.T) {
	assignments := []Assignment{{Buyer: "b2", Seller: "s1"}, {Buyer: "b1", Seller: "s2"}}
	prices := map[string]int64{"s2": 0, "s1": 10}
	nonce := "outcome_nonce"

	hash := ComputeOutcomeHash(assignments, prices, 10, nonce)

	if len(hash) != 64 || !isHex(hash) {
		t.Errorf("ComputeOutcomeHash() = %q, want 64 hex characters", hash)
	}

	// Pairs and prices are sorted before hashing
	expectedData := "outcome_nonce|10|b1:s2,b2:s1|s1:10,s2:0"
	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte(expectedData)))
	if hash != expectedHash {
		t.Errorf("ComputeOutcomeHash() = %v, want %v", hash, expectedHash)
	}
}

func TestComputeOutcomeHash_OrderIndependent(t *testing.T) {
	prices := map[string]int64{"s1": 10, "s2": 0}
	hash1 := ComputeOutcomeHash([]Assignment{{"b1", "s2"}, {"b2", "s1"}}, prices, 10, "n")
	hash2 := ComputeOutcomeHash([]Assignment{{"b2", "s1"}, {"b1", "s2"}}, prices, 10, "n")

	if hash1 != hash2 {
		t.Errorf("Assignment order should not affect the hash")
	}
}

func TestComputeOutcomeHash_DifferentInputs(t *testing.T) {
	assignments := []Assignment{{"b1", "s1"}}
	prices := map[string]int64{"s1": 3}
	base := ComputeOutcomeHash(assignments, prices, 3, "n")

	if base == ComputeOutcomeHash(assignments, prices, 4, "n") {
		t.Errorf("Different round counts should produce different hashes")
	}
	if base == ComputeOutcomeHash(assignments, map[string]int64{"s1": 4}, 3, "n") {
		t.Errorf("Different prices should produce different hashes")
	}
	if base == ComputeOutcomeHash([]Assignment{{"b1", "s2"}}, prices, 3, "n") {
		t.Errorf("Different assignments should produce different hashes")
	}
}

func TestComputeOutcomeHash_Empty(t *testing.T) {
	hash := ComputeOutcomeHash(nil, nil, 0, "n")

	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte("n|0||")))
	if hash != expectedHash {
		t.Errorf("ComputeOutcomeHash() = %v, want %v", hash, expectedHash)
	}
}
