// Package receipttest provides a stand-in for the Nitro security module so
// receipt issuance and validation can be exercised outside an enclave.
package receipttest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"fmt"
	"math/big"
	"testing"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

// PCR values reported by the mock enclave.
const (
	PCR0 = "3b4cef27e672fdbcc808960a88ddfe7329dd2e367b6850c9a8d910315f0b47e4224d6db361b75e010c87691d86ca9c57"
	PCR1 = "4b4d5b3661b3efc12920900c80e126e4ce783c522de6c02a2a5bf7af3a2b9327b86776f188e4be1c1c404a129dbda493"
	PCR2 = "2bdd28c1d85bb3872da3617a29a6bfeb50c65750c995f92e7dac6b5f2c4c72e0f9976bdee62a0b25864d10dffb535e11"
	PCR3 = "12a333ab2d5a07bcca664f08190faae4594bb354e6ed710fa9c0d52c269a0f5eb6d9031cb821500171850778aee86c17"
	PCR4 = "f88f75c5b8234dcad266767d156ebeff821ce572ed63ecf744e0f23f838a40974927fae0cb0ee9905e306ac3c1e0e777"
)

// MockEnclaveHandle implements the Attest method for testing
type MockEnclaveHandle struct {
	AttestFunc func(options enclave.AttestationOptions) ([]byte, error)
	// Calls counts Attest invocations.
	Calls int
}

func (m *MockEnclaveHandle) Attest(options enclave.AttestationOptions) ([]byte, error) {
	m.Calls++
	if m.AttestFunc != nil {
		return m.AttestFunc(options)
	}
	return nil, fmt.Errorf("mock not configured")
}

// FailingEnclave returns a handle whose Attest always fails with err.
func FailingEnclave(err error) *MockEnclaveHandle {
	return &MockEnclaveHandle{
		AttestFunc: func(enclave.AttestationOptions) ([]byte, error) { return nil, err },
	}
}

func mustDecodeHex(t testing.TB, hexStr string) []byte {
	t.Helper()
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		t.Fatalf("invalid hex string %s: %v", hexStr, err)
	}
	return b
}

// CreateMockEnclave returns a handle producing attestation documents shaped
// like the Nitro security module's: an untagged COSE_Sign1 signed with ES384
// by a self-signed test certificate. The certificate does not chain to the
// AWS Nitro root.
func CreateMockEnclave(t testing.TB) *MockEnclaveHandle {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatalf("generate attestation key: %v", err)
	}
	certDER := selfSignedCert(t, key)
	signer, err := cose.NewSigner(cose.AlgorithmES384, key)
	if err != nil {
		t.Fatalf("create attestation signer: %v", err)
	}
	protected, err := cbor.Marshal(map[int]int{1: int(cose.AlgorithmES384)})
	if err != nil {
		t.Fatalf("encode protected header: %v", err)
	}
	pcrs := map[uint64][]byte{
		0: mustDecodeHex(t, PCR0),
		1: mustDecodeHex(t, PCR1),
		2: mustDecodeHex(t, PCR2),
		3: mustDecodeHex(t, PCR3),
		4: mustDecodeHex(t, PCR4),
	}

	return &MockEnclaveHandle{
		AttestFunc: func(options enclave.AttestationOptions) ([]byte, error) {
			doc := map[string]any{
				"module_id":   "test-enclave-12345",
				"digest":      "SHA384",
				"timestamp":   uint64(time.Now().UnixMilli()),
				"pcrs":        pcrs,
				"certificate": certDER,
				"cabundle":    [][]byte{certDER},
				"user_data":   options.UserData,
				"nonce":       options.Nonce,
			}
			payload, err := cbor.Marshal(doc)
			if err != nil {
				return nil, err
			}

			sigStructure, err := cbor.Marshal([]any{"Signature1", protected, []byte{}, payload})
			if err != nil {
				return nil, err
			}
			signature, err := signer.Sign(rand.Reader, sigStructure)
			if err != nil {
				return nil, err
			}

			return cbor.Marshal([]any{protected, map[any]any{}, payload, signature})
		},
	}
}

func selfSignedCert(t testing.TB, key *ecdsa.PrivateKey) []byte {
	t.Helper()
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-enclave-12345"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create test certificate: %v", err)
	}
	return der
}
