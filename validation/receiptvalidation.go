package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudx-io/auctionhouse/auctionapi"
	"github.com/cloudx-io/auctionhouse/receipt"
)

// ValidateReceipt verifies a signed settlement receipt:
//   - the COSE_Sign1 envelope is signed by publicKeyPEM
//   - the signed payload equals the presented receipt
//   - the settlement hash matches the receipt fields
//   - when attached, the attestation document is genuine and binds the
//     receipt hash and signing key
//
// Returns:
//   - ReceiptValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed input, missing config)
func ValidateReceipt(signed *auctionapi.SignedReceipt, publicKeyPEM string, opts Options) (*ReceiptValidationResult, error) {
	if signed == nil {
		return nil, fmt.Errorf("receipt is nil")
	}
	publicKey, err := receipt.ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	receiptCOSE, err := signed.ReceiptCOSEBase64.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}

	result := &ReceiptValidationResult{
		BaseValidationResult: BaseValidationResult{ValidationDetails: []string{}},
		AttestationRequired:  opts.RequireAttestation,
	}

	payload, err := VerifyReceiptSignature(receiptCOSE, publicKey)
	if err != nil {
		result.detail(err.Error())
	} else {
		result.ReceiptSignatureValid = true
		result.detail("Receipt signature verified")
		if payload == signed.Receipt {
			result.PayloadMatch = true
			result.detail("Signed payload matches receipt")
		} else {
			result.detail("Signed payload does not match receipt")
		}
	}

	computed, err := signed.Receipt.ComputeHash()
	switch {
	case err != nil:
		result.detail(fmt.Sprintf("Settlement hash not computable: %v", err))
	case computed == signed.Receipt.Hash:
		result.HashValid = true
		result.detail(fmt.Sprintf("Settlement hash valid: %s", computed))
	default:
		result.detail(fmt.Sprintf("Settlement hash mismatch: computed %s, receipt has %s", computed, signed.Receipt.Hash))
	}

	if signed.AttestationCOSEBase64 == "" {
		if opts.RequireAttestation {
			result.detail("Attestation required but missing")
		} else {
			result.detail("No attestation attached")
		}
		return result, nil
	}
	result.Attested = true

	attestationCOSE, err := signed.AttestationCOSEBase64.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode attestation: %w", err)
	}
	base, _, userDataBytes, err := validateCommonAttestation(attestationCOSE, opts)
	if err != nil {
		return nil, err
	}
	base.ValidationDetails = append(result.ValidationDetails, base.ValidationDetails...)
	result.BaseValidationResult = *base

	result.UserDataValid = validateUserData(userDataBytes, signed.Receipt, publicKeyPEM, result)
	return result, nil
}

func validateUserData(userDataBytes []byte, r auctionapi.SettlementReceipt, publicKeyPEM string, result *ReceiptValidationResult) bool {
	if len(userDataBytes) == 0 {
		result.detail("Attestation user data missing")
		return false
	}
	var userData auctionapi.ReceiptAttestationUserData
	if err := json.Unmarshal(userDataBytes, &userData); err != nil {
		result.detail(fmt.Sprintf("Attestation user data unreadable: %v", err))
		return false
	}

	valid := true
	if userData.SettlementHash != r.Hash {
		result.detail(fmt.Sprintf("Attested hash mismatch: attestation has %s", userData.SettlementHash))
		valid = false
	}
	if userData.ReceiptID != r.ID {
		result.detail(fmt.Sprintf("Attested receipt id mismatch: attestation has %s", userData.ReceiptID))
		valid = false
	}
	// Trim whitespace from both keys (handles trailing newlines from PEM encoding)
	if strings.TrimSpace(userData.PublicKey) != strings.TrimSpace(publicKeyPEM) {
		result.detail("Public key mismatch: provided key does not match attested key")
		valid = false
	}
	if valid {
		result.detail("Attestation binds receipt hash and signing key")
	}
	return valid
}
