package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cloudx-io/auctionhouse/auctionapi"
	"github.com/cloudx-io/auctionhouse/validation"
)

func main() {
	var (
		receiptInput       = flag.String("receipt", "", "Signed receipt or auction house response JSON (file path or inline JSON)")
		publicKeyInput     = flag.String("public-key", "", "Receipt signing public key PEM (file path or inline PEM)")
		pcrsPath           = flag.String("pcrs", "", "Known PCR sets JSON file (required for attested receipts)")
		requireAttestation = flag.Bool("require-attestation", false, "Fail receipts without an enclave attestation")
		outputFormat       = flag.String("format", "text", "Output format: text or json")
		help               = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help {
		showUsage()
		os.Exit(0)
	}

	if *receiptInput == "" || *publicKeyInput == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --receipt and --public-key are required\n")
		os.Exit(1)
	}

	signed, err := readReceipt(*receiptInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading receipt: %v\n", err)
		os.Exit(2)
	}

	publicKey := string(readInput(*publicKeyInput))

	opts := validation.Options{RequireAttestation: *requireAttestation}
	if *pcrsPath != "" {
		opts.PCRSets, err = validation.LoadPCRsFromFile(*pcrsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading PCR sets: %v\n", err)
			os.Exit(2)
		}
	}

	result, err := validation.ValidateReceipt(signed, publicKey, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		os.Exit(2)
	}

	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputText(signed, result)
	}

	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	fmt.Println("Auction House Settlement Receipt Validator")
	fmt.Println()
	fmt.Println("Verifies a signed settlement receipt and its optional enclave attestation.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  receipt-validator --receipt <json> --public-key <pem> [options]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --receipt <json>                  Signed receipt, or a finish/cancel response containing one")
	fmt.Println("  --public-key <pem>                Receipt signing key published by the auction house")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --pcrs <file>                     Known PCR sets ({\"pcr_sets\":[{\"pcr0\":...}]})")
	fmt.Println("  --require-attestation             Reject receipts issued outside an enclave")
	fmt.Println("  --format <text|json>              Output format (default: text)")
	fmt.Println("  --help                            Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  receipt-validator --receipt finish_response.json --public-key receipt_pub.pem")
	fmt.Println("  receipt-validator --receipt receipt.json --public-key receipt_pub.pem \\")
	fmt.Println("    --pcrs pcrs.json --require-attestation --format json")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Validation passed")
	fmt.Println("  1 - Validation failed")
	fmt.Println("  2 - Invalid input or runtime error")
}

// readInput returns the file contents when input names a readable file and
// the input itself otherwise.
func readInput(input string) []byte {
	if data, err := os.ReadFile(input); err == nil {
		return data
	}
	return []byte(input)
}

func readReceipt(input string) (*auctionapi.SignedReceipt, error) {
	data := readInput(input)

	var resp auctionapi.Response
	if err := json.Unmarshal(data, &resp); err == nil && resp.Receipt != nil {
		return resp.Receipt, nil
	}

	var signed auctionapi.SignedReceipt
	if err := json.Unmarshal(data, &signed); err != nil {
		return nil, fmt.Errorf("parse receipt: %w", err)
	}
	if signed.ReceiptCOSEBase64 == "" {
		return nil, fmt.Errorf("missing 'receipt_cose_base64' in receipt")
	}
	return &signed, nil
}

func outputText(signed *auctionapi.SignedReceipt, result *validation.ReceiptValidationResult) {
	fmt.Println("Settlement Receipt Validator")
	fmt.Println("============================")
	fmt.Println()

	r := signed.Receipt
	fmt.Println("Receipt:")
	fmt.Printf("  ID:                      %s\n", r.ID)
	fmt.Printf("  Auction:                 %s (asset %d)\n", r.AuctionID, r.AssetID)
	fmt.Printf("  Status:                  %s\n", r.Status)
	if r.Winner != "" {
		fmt.Printf("  Winner:                  %s\n", r.Winner)
	}
	fmt.Printf("  Price / Fee / Proceeds:  %s / %s / %s\n", r.Price, r.Fee, r.SellerProceeds)

	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Receipt Signature Valid: %v\n", result.ReceiptSignatureValid)
	fmt.Printf("  Payload Match:           %v\n", result.PayloadMatch)
	fmt.Printf("  Hash Valid:              %v\n", result.HashValid)
	fmt.Printf("  Attested:                %v\n", result.Attested)
	if result.Attested {
		fmt.Printf("  PCRs Valid:              %v\n", result.PCRsValid)
		fmt.Printf("  Certificate Valid:       %v\n", result.CertificateValid)
		fmt.Printf("  Signature Valid:         %v\n", result.SignatureValid)
		fmt.Printf("  User Data Valid:         %v\n", result.UserDataValid)
	}

	fmt.Println()
	fmt.Println("Details:")
	for _, detail := range result.ValidationDetails {
		fmt.Printf("  - %s\n", detail)
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 28))
	if result.IsValid() {
		fmt.Println("VALIDATION: ✓ PASSED")
		fmt.Println("Exit Code: 0")
	} else {
		fmt.Println("VALIDATION: ✗ FAILED")
		fmt.Println("Exit Code: 1")
	}
}

func outputJSON(result *validation.ReceiptValidationResult) {
	output := map[string]any{
		"valid":                   result.IsValid(),
		"receipt_signature_valid": result.ReceiptSignatureValid,
		"payload_match":           result.PayloadMatch,
		"hash_valid":              result.HashValid,
		"attested":                result.Attested,
		"pcrs_valid":              result.PCRsValid,
		"certificate_valid":       result.CertificateValid,
		"signature_valid":         result.SignatureValid,
		"user_data_valid":         result.UserDataValid,
		"details":                 result.ValidationDetails,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}
