package validation

import (
	"crypto/x509"
	"time"
)

// BaseValidationResult contains the attestation checks shared by every
// attested document
type BaseValidationResult struct {
	PCRsValid         bool
	CertificateValid  bool
	SignatureValid    bool
	ValidationDetails []string
}

func (r *BaseValidationResult) detail(s string) {
	r.ValidationDetails = append(r.ValidationDetails, s)
}

// ReceiptValidationResult contains validation results for a signed settlement
// receipt.
type ReceiptValidationResult struct {
	BaseValidationResult

	// ReceiptSignatureValid: the COSE_Sign1 envelope verifies against the
	// auction house public key.
	ReceiptSignatureValid bool
	// PayloadMatch: the signed payload equals the receipt presented alongside it.
	PayloadMatch bool
	// HashValid: the settlement hash recomputed from the receipt fields matches.
	HashValid bool

	Attested            bool
	AttestationRequired bool
	// UserDataValid: the attestation binds this receipt hash and signing key.
	UserDataValid bool
}

// IsValid returns true if all receipt validation checks passed
func (r *ReceiptValidationResult) IsValid() bool {
	if !r.ReceiptSignatureValid || !r.PayloadMatch || !r.HashValid {
		return false
	}
	if !r.Attested {
		return !r.AttestationRequired
	}
	return r.PCRsValid && r.CertificateValid && r.SignatureValid && r.UserDataValid
}

// Options tune receipt validation.
type Options struct {
	// PCRSets lists the accepted enclave measurements. Required when the
	// receipt carries an attestation.
	PCRSets []PCRSet
	// RequireAttestation fails receipts issued outside an enclave.
	RequireAttestation bool
	// Roots replaces the AWS Nitro root certificate.
	Roots *x509.CertPool
	// Now overrides the verification time of the attestation certificate
	// chain. The default is the attestation timestamp.
	Now func() time.Time
}

// PCRSet represents a known-good set of PCR measurements
type PCRSet struct {
	PCR0       string `json:"pcr0"`
	PCR1       string `json:"pcr1"`
	PCR2       string `json:"pcr2"`
	CommitHash string `json:"commit_hash"` // auctionhouse commit used to build the enclave image
}

// PCRConfig represents the PCR configuration file structure
type PCRConfig struct {
	PCRSets []PCRSet `json:"pcr_sets"`
}
