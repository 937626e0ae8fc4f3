package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cloudx-io/openclearing/core"
	"github.com/cloudx-io/openclearing/marketapi"
)

// clearingTimeout bounds a single clearing run.
const clearingTimeout = 30 * time.Second

func failedResponse(runID string, startTime time.Time, format string, args ...any) marketapi.ClearingResponse {
	return marketapi.ClearingResponse{
		Type:           "clearing_response",
		Success:        false,
		Message:        fmt.Sprintf(format, args...),
		RunID:          runID,
		ProcessingTime: time.Since(startTime).Milliseconds(),
	}
}

// ProcessClearing clears the requested market and returns a signed receipt
// of the outcome. The attester may be nil, in which case the response carries
// no attestation.
func ProcessClearing(ctx context.Context, attester EnclaveAttester, signer *ReceiptSigner, req marketapi.ClearingRequest) marketapi.ClearingResponse {
	startTime := time.Now()
	runID := uuid.New().String()
	log.Printf("INFO: Processing clearing run %s for market %s", runID, req.MarketID)

	if req.MaxRounds < 0 {
		return failedResponse(runID, startTime, "Invalid negative max_rounds %d", req.MaxRounds)
	}

	market, err := req.Market.BuildMarket()
	if err != nil {
		return failedResponse(runID, startTime, "Invalid market: %v", err)
	}
	log.Printf("INFO: Clearing run %s market: %d buyers, %d sellers, %d valuations",
		runID, len(market.Buyers()), len(market.Sellers()), market.EdgeCount())

	hashNonce, err := generateNonce()
	if err != nil {
		return failedResponse(runID, startTime, "Clearing failed: %v", err)
	}
	// Hash the market before clearing raises any price
	marketHash := core.ComputeMarketHash(market, hashNonce)

	ctx, cancel := context.WithTimeout(ctx, clearingTimeout)
	defer cancel()

	result, err := core.RunClearing(ctx, market, core.Options{MaxRounds: req.MaxRounds})
	if err != nil {
		log.Printf("INFO: Clearing run %s failed: %v", runID, err)
		return failedResponse(runID, startTime, "Clearing failed: %v", err)
	}

	receipt := &marketapi.ClearingReceipt{
		RunID:       runID,
		MarketID:    req.MarketID,
		MarketHash:  marketHash,
		OutcomeHash: core.ComputeOutcomeHash(result.Assignments, result.Prices, result.Rounds, hashNonce),
		HashNonce:   hashNonce,
		Assignments: result.Assignments,
		Prices:      result.Prices,
		Rounds:      result.Rounds,
		Timestamp:   time.Now().Unix(),
	}

	signed, err := signer.Sign(receipt)
	if err != nil {
		log.Printf("ERROR: Receipt signing failed: %v", err)
		return failedResponse(runID, startTime, "Receipt signing failed: %v", err)
	}
	publicKeyPEM, err := signer.PublicKeyPEM()
	if err != nil {
		return failedResponse(runID, startTime, "Receipt signing failed: %v", err)
	}

	var attestation string
	if attester != nil {
		attestation, err = AttestReceipt(attester, runID, signed)
		if err != nil {
			log.Printf("ERROR: TEE attestation failed: %v", err)
			return failedResponse(runID, startTime, "Enclave processing failed: %v", err)
		}
	}

	processingTime := time.Since(startTime).Milliseconds()
	log.Printf("INFO: Clearing run %s converged: %d assignments after %d rounds, processing=%dms",
		runID, len(result.Assignments), result.Rounds, processingTime)

	outcome := marketapi.NewClearingOutcome(result)
	return marketapi.ClearingResponse{
		Type:            "clearing_response",
		Success:         true,
		Message:         fmt.Sprintf("Cleared market with %d buyers in %d rounds", len(result.Buyers), result.Rounds),
		RunID:           runID,
		Outcome:         &outcome,
		Receipt:         signed.Base64(),
		SignerPublicKey: publicKeyPEM,
		Attestation:     attestation,
		ProcessingTime:  processingTime,
	}
}
