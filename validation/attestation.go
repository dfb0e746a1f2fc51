package validation

import (
	"fmt"

	"github.com/cloudx-io/auctionhouse/auctionapi"
	"github.com/cloudx-io/auctionhouse/auctionapi/parsing"
)

// validateCommonAttestation checks the PCRs, certificate chain and signature
// of a Nitro attestation document. It returns the results together with the
// parsed document and its raw user data.
func validateCommonAttestation(coseBytes auctionapi.COSE, opts Options) (*BaseValidationResult, auctionapi.AttestationDoc, []byte, error) {
	attestationDoc, userData, err := parsing.ParseAttestationDoc(coseBytes)
	if err != nil {
		return nil, auctionapi.AttestationDoc{}, nil, fmt.Errorf("parse attestation document: %w", err)
	}
	if len(opts.PCRSets) == 0 {
		return nil, auctionapi.AttestationDoc{}, nil, fmt.Errorf("no known PCR sets configured")
	}

	result := &BaseValidationResult{
		ValidationDetails: []string{},
	}

	matchedSet := MatchPCRs(attestationDoc.PCRs, opts.PCRSets)
	result.PCRsValid = matchedSet >= 0
	if !result.PCRsValid {
		result.detail(fmt.Sprintf("PCR0: %s (no match)", attestationDoc.PCRs.ImageFileHash))
		result.detail(fmt.Sprintf("PCR1: %s (no match)", attestationDoc.PCRs.KernelHash))
		result.detail(fmt.Sprintf("PCR2: %s (no match)", attestationDoc.PCRs.ApplicationHash))
	} else {
		result.detail("PCR measurements valid")
		result.detail(fmt.Sprintf("Matched PCR set: #%d (commit: %s)", matchedSet, opts.PCRSets[matchedSet].CommitHash))
	}

	at := attestationDoc.Timestamp
	if opts.Now != nil {
		at = opts.Now()
	}
	switch {
	case attestationDoc.Certificate == "":
		result.detail("Missing certificate")
	case len(attestationDoc.CABundle) == 0:
		result.detail("Missing CA bundle")
	default:
		err = ValidateCertificateChain(attestationDoc.Certificate, attestationDoc.CABundle, opts.Roots, at)
		if err != nil {
			result.detail(fmt.Sprintf("Certificate chain validation failed: %v", err))
		} else {
			result.CertificateValid = true
			result.detail("Certificate chain verified")
		}
	}

	if attestationDoc.Certificate != "" {
		if err := VerifyCOSESignature(coseBytes, attestationDoc.Certificate); err != nil {
			result.detail(fmt.Sprintf("COSE signature verification failed: %v", err))
		} else {
			result.SignatureValid = true
			result.detail("COSE signature verified")
		}
	}

	return result, attestationDoc, userData, nil
}
