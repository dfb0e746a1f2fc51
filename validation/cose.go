package validation

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/auctionhouse/auctionapi"
	"github.com/cloudx-io/auctionhouse/auctionapi/parsing"
)

// VerifyCOSESignature verifies the ES384 signature of a Nitro attestation
// document against the certificate it carries.
func VerifyCOSESignature(coseBytes auctionapi.COSE, certB64 string) error {
	certDER, err := base64.StdEncoding.DecodeString(certB64)
	if err != nil {
		return fmt.Errorf("decode certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return fmt.Errorf("parse certificate: %w", err)
	}

	// AWS Nitro returns untagged COSE_Sign1 (4-element array)
	parts, err := parsing.SplitCOSESign1(coseBytes)
	if err != nil {
		return err
	}

	ecdsaKey, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("certificate public key is not ECDSA")
	}

	// Sig_structure for COSE_Sign1: ["Signature1", protected, external_aad, payload]
	sigStructureBytes, err := cbor.Marshal([]any{
		"Signature1",
		parts.Protected,
		[]byte{},
		parts.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal Sig_structure: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES384, ecdsaKey)
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}

	if err := verifier.Verify(sigStructureBytes, parts.Signature); err != nil {
		return fmt.Errorf("COSE signature verification failed: %w", err)
	}

	return nil
}

// VerifyReceiptSignature checks a tagged COSE_Sign1 receipt envelope against
// publicKey and returns the receipt it carries.
func VerifyReceiptSignature(coseBytes auctionapi.COSE, publicKey *ecdsa.PublicKey) (auctionapi.SettlementReceipt, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(coseBytes); err != nil {
		return auctionapi.SettlementReceipt{}, fmt.Errorf("parse receipt COSE_Sign1: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, publicKey)
	if err != nil {
		return auctionapi.SettlementReceipt{}, fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return auctionapi.SettlementReceipt{}, fmt.Errorf("receipt signature verification failed: %w", err)
	}

	var r auctionapi.SettlementReceipt
	if err := cbor.Unmarshal(msg.Payload, &r); err != nil {
		return auctionapi.SettlementReceipt{}, fmt.Errorf("decode receipt payload: %w", err)
	}
	return r, nil
}
