// Package receipt issues signed settlement receipts for closed auctions.
package receipt

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/veraison/go-cose"
	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/auctionapi"
	"github.com/cloudx-io/auctionhouse/core"
)

// Attester produces Nitro attestation documents. *enclave.EnclaveHandle
// implements it.
type Attester interface {
	Attest(options enclave.AttestationOptions) ([]byte, error)
}

// NitroAttester returns the process-wide Nitro security module handle.
func NitroAttester() (Attester, error) {
	handle, err := enclave.GetOrInitializeHandle()
	if err != nil {
		return nil, fmt.Errorf("NSM not available: %w", err)
	}
	return handle, nil
}

// Issuer signs settlement receipts and, with an attester, attaches an
// attestation document binding the receipt hash to the signing key.
type Issuer struct {
	signer       cose.Signer
	publicKeyPEM string
	attester     Attester
	log          *zap.Logger
	newID        func() string
	clock        func() time.Time
}

type IssuerOption func(*Issuer)

func WithAttester(a Attester) IssuerOption {
	return func(i *Issuer) { i.attester = a }
}

func WithLogger(log *zap.Logger) IssuerOption {
	return func(i *Issuer) {
		if log != nil {
			i.log = log
		}
	}
}

func WithReceiptIDs(gen func() string) IssuerOption {
	return func(i *Issuer) {
		if gen != nil {
			i.newID = gen
		}
	}
}

func NewIssuer(keys *KeyManager, opts ...IssuerOption) (*Issuer, error) {
	if keys == nil {
		return nil, fmt.Errorf("key manager is nil")
	}
	signer, err := keys.signer()
	if err != nil {
		return nil, fmt.Errorf("create receipt signer: %w", err)
	}
	publicKeyPEM, err := keys.PublicKeyPEM()
	if err != nil {
		return nil, err
	}

	i := &Issuer{
		signer:       signer,
		publicKeyPEM: publicKeyPEM,
		log:          zap.NewNop(),
		newID:        uuid.NewString,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// PublicKeyPEM returns the key receipts are verified against.
func (i *Issuer) PublicKeyPEM() string {
	return i.publicKeyPEM
}

// Attested reports whether receipts carry an attestation document.
func (i *Issuer) Attested() bool {
	return i.attester != nil
}

// Issue builds, signs and optionally attests the receipt for s.
func (i *Issuer) Issue(s core.Settlement) (*auctionapi.SignedReceipt, error) {
	nonce, err := generateNonce()
	if err != nil {
		return nil, err
	}
	r := auctionapi.NewSettlementReceipt(i.newID(), s, nonce)

	signed, err := i.sign(r)
	if err != nil {
		return nil, err
	}
	out := &auctionapi.SignedReceipt{
		Receipt:           r,
		ReceiptCOSEBase64: signed.EncodeBase64(),
	}

	if i.attester != nil {
		attestation, err := i.attest(r)
		if err != nil {
			return nil, err
		}
		out.AttestationCOSEBase64 = attestation.EncodeBase64()
	}

	i.log.Info("Receipt issued",
		zap.String("receipt", r.ID),
		zap.String("auction", r.AuctionID),
		zap.Uint64("asset", r.AssetID),
		zap.String("status", r.Status),
		zap.Bool("attested", i.attester != nil))
	return out, nil
}

func (i *Issuer) sign(r auctionapi.SettlementReceipt) (auctionapi.COSE, error) {
	payload, err := cbor.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode receipt: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Payload = payload
	if err := msg.Sign(rand.Reader, nil, i.signer); err != nil {
		return nil, fmt.Errorf("sign receipt: %w", err)
	}

	raw, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("encode COSE_Sign1: %w", err)
	}
	return auctionapi.COSE(raw), nil
}

func (i *Issuer) attest(r auctionapi.SettlementReceipt) (auctionapi.COSE, error) {
	userData, err := json.Marshal(auctionapi.ReceiptAttestationUserData{
		ReceiptID:      r.ID,
		AuctionID:      r.AuctionID,
		SettlementHash: r.Hash,
		KeyAlgorithm:   KeyAlgorithm,
		PublicKey:      i.publicKeyPEM,
		Timestamp:      i.clock(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user data: %w", err)
	}
	nonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate attestation nonce: %w", err)
	}

	attestationCBOR, err := i.attester.Attest(enclave.AttestationOptions{
		UserData: userData,
		Nonce:    []byte(nonce),
	})
	if err != nil {
		i.log.Error("NSM attestation failed", zap.String("receipt", r.ID), zap.Error(err))
		return nil, fmt.Errorf("NSM attestation failed: %w", err)
	}
	i.log.Debug("Attestation generated", zap.Int("bytes", len(attestationCBOR)))
	return auctionapi.COSE(attestationCBOR), nil
}

func generateNonce() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate secure nonce - %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}
