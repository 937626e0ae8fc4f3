package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cloudx-io/openclearing/marketapi"
	"github.com/cloudx-io/openclearing/marketapi/parsing"
	"github.com/cloudx-io/openclearing/validation"
)

const (
	exitValid   = 0
	exitInvalid = 1
	exitInput   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("receipt-validator", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		responseInput = fs.String("response", "", "Clearing response JSON (file path or inline JSON)")
		marketPath    = fs.String("market", "", "Market file as submitted (.gml or .json)")
		pcrsPath      = fs.String("pcrs", "", "Known PCR sets JSON; enables attestation checks")
		outputFormat  = fs.String("format", "text", "Output format: text or json")
		help          = fs.Bool("help", false, "Show usage information")
	)
	fs.Usage = func() { showUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		return exitInput
	}

	if *help {
		showUsage(stdout)
		return exitValid
	}

	if *responseInput == "" || *marketPath == "" {
		showUsage(stderr)
		fmt.Fprintf(stderr, "\nError: --response and --market are required\n")
		return exitInput
	}
	if *outputFormat != "text" && *outputFormat != "json" {
		fmt.Fprintf(stderr, "Error: unknown format %q\n", *outputFormat)
		return exitInput
	}

	response, err := readResponse(*responseInput)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading clearing response: %v\n", err)
		return exitInput
	}
	if !response.Success {
		fmt.Fprintf(stderr, "Error: clearing response reports failure: %s\n", response.Message)
		return exitInput
	}

	market, err := parsing.LoadMarket(*marketPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading market: %v\n", err)
		return exitInput
	}

	receiptResult, err := validation.ValidateReceipt(&validation.ReceiptValidationInput{
		Receipt:         response.Receipt,
		SignerPublicKey: response.SignerPublicKey,
		Market:          market,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Validation error: %v\n", err)
		return exitInput
	}

	var attestationResult *validation.AttestationValidationResult
	if *pcrsPath != "" {
		attestationResult, err = validateAttestation(response, *pcrsPath)
		if err != nil {
			fmt.Fprintf(stderr, "Attestation validation error: %v\n", err)
			return exitInput
		}
	}

	valid := receiptResult.IsValid() && (attestationResult == nil || attestationResult.IsValid())
	if *outputFormat == "json" {
		if err := outputJSON(stdout, valid, receiptResult, attestationResult); err != nil {
			fmt.Fprintf(stderr, "Error marshaling JSON: %v\n", err)
			return exitInput
		}
	} else {
		outputText(stdout, valid, receiptResult, attestationResult)
	}

	if !valid {
		return exitInvalid
	}
	return exitValid
}

func showUsage(w io.Writer) {
	fmt.Fprintln(w, "Clearing Receipt Validator")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Checks a signed clearing receipt against the market that was submitted.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  receipt-validator --response <json> --market <file> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Required Flags:")
	fmt.Fprintln(w, "  --response <json>                 Clearing response from the clearing server")
	fmt.Fprintln(w, "  --market <file>                   Market file (.gml or .json) with starting prices")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Optional Flags:")
	fmt.Fprintln(w, "  --pcrs <file>                     Known PCR sets; also validates the enclave attestation")
	fmt.Fprintln(w, "  --format <text|json>              Output format (default: text)")
	fmt.Fprintln(w, "  --help                            Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit Codes:")
	fmt.Fprintln(w, "  0 - Validation passed")
	fmt.Fprintln(w, "  1 - Validation failed")
	fmt.Fprintln(w, "  2 - Invalid input or runtime error")
}

func readJSONInput(input string) []byte {
	// Try reading as file first
	if data, err := os.ReadFile(input); err == nil {
		return data
	}
	// Treat as inline JSON
	return []byte(input)
}

func readResponse(input string) (*marketapi.ClearingResponse, error) {
	var response marketapi.ClearingResponse
	if err := json.Unmarshal(readJSONInput(input), &response); err != nil {
		return nil, fmt.Errorf("parse clearing response: %w", err)
	}
	if response.Receipt == "" {
		return nil, fmt.Errorf("clearing response carries no receipt")
	}
	return &response, nil
}

func validateAttestation(response *marketapi.ClearingResponse, pcrsPath string) (*validation.AttestationValidationResult, error) {
	knownPCRs, err := validation.LoadPCRsFromFile(pcrsPath)
	if err != nil {
		return nil, err
	}
	if response.Attestation == "" {
		return nil, fmt.Errorf("clearing response carries no attestation")
	}
	receipt, err := response.Receipt.Decode()
	if err != nil {
		return nil, err
	}
	return validation.ValidateReceiptAttestation(&validation.AttestationValidationInput{
		Attestation: response.Attestation,
		Receipt:     receipt,
		RunID:       response.RunID,
		KnownPCRs:   knownPCRs,
	})
}

func outputText(w io.Writer, valid bool, receipt *validation.ReceiptValidationResult, attestation *validation.AttestationValidationResult) {
	fmt.Fprintln(w, "Clearing Receipt Validator")
	fmt.Fprintln(w, "==========================")
	fmt.Fprintln(w)

	if receipt.Receipt != nil {
		fmt.Fprintf(w, "Run:    %s\n", receipt.Receipt.RunID)
		fmt.Fprintf(w, "Market: %s\n", receipt.Receipt.MarketID)
		fmt.Fprintf(w, "Rounds: %d\n", receipt.Receipt.Rounds)
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Signature Valid:         %v\n", receipt.SignatureValid)
	fmt.Fprintf(w, "  Market Hash Valid:       %v\n", receipt.MarketHashValid)
	fmt.Fprintf(w, "  Outcome Hash Valid:      %v\n", receipt.OutcomeHashValid)
	fmt.Fprintf(w, "  Prices Valid:            %v\n", receipt.PricesValid)
	fmt.Fprintf(w, "  Equilibrium Valid:       %v\n", receipt.EquilibriumValid)
	if attestation != nil {
		fmt.Fprintf(w, "  PCRs Valid:              %v\n", attestation.PCRsValid)
		fmt.Fprintf(w, "  Certificate Valid:       %v\n", attestation.CertificateValid)
		fmt.Fprintf(w, "  Attestation Sig Valid:   %v\n", attestation.SignatureValid)
		fmt.Fprintf(w, "  Receipt Binding Valid:   %v\n", attestation.ReceiptBindingValid)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Details:")
	for _, detail := range receipt.ValidationDetails {
		fmt.Fprintf(w, "  - %s\n", detail)
	}
	if attestation != nil {
		for _, detail := range attestation.ValidationDetails {
			fmt.Fprintf(w, "  - %s\n", detail)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "==========================")
	if valid {
		fmt.Fprintln(w, "VALIDATION: ✓ PASSED")
	} else {
		fmt.Fprintln(w, "VALIDATION: ✗ FAILED")
	}
}

func outputJSON(w io.Writer, valid bool, receipt *validation.ReceiptValidationResult, attestation *validation.AttestationValidationResult) error {
	output := map[string]any{
		"valid":              valid,
		"signature_valid":    receipt.SignatureValid,
		"market_hash_valid":  receipt.MarketHashValid,
		"outcome_hash_valid": receipt.OutcomeHashValid,
		"prices_valid":       receipt.PricesValid,
		"equilibrium_valid":  receipt.EquilibriumValid,
		"details":            receipt.ValidationDetails,
	}
	if attestation != nil {
		output["attestation"] = map[string]any{
			"pcrs_valid":            attestation.PCRsValid,
			"certificate_valid":     attestation.CertificateValid,
			"signature_valid":       attestation.SignatureValid,
			"receipt_binding_valid": attestation.ReceiptBindingValid,
			"details":               attestation.ValidationDetails,
		}
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
