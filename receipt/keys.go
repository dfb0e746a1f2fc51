package receipt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/veraison/go-cose"
)

// KeyAlgorithm is the COSE algorithm used for settlement receipts.
const KeyAlgorithm = "ES256"

// KeyManager holds the ECDSA P-256 key pair that signs settlement receipts.
type KeyManager struct {
	privateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
}

// NewKeyManager creates a new KeyManager with a fresh key pair
func NewKeyManager() (*KeyManager, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return &KeyManager{privateKey: privateKey, PublicKey: &privateKey.PublicKey}, nil
}

// LoadKeyManager reads a PEM encoded private key from path. When the file does
// not exist a new key is generated and written there with mode 0600.
func LoadKeyManager(path string) (*KeyManager, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		km, err := NewKeyManager()
		if err != nil {
			return nil, err
		}
		if err := km.save(path); err != nil {
			return nil, err
		}
		return km, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	var privateKey *ecdsa.PrivateKey
	switch block.Type {
	case "EC PRIVATE KEY":
		privateKey, err = x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		var key any
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err == nil {
			var ok bool
			if privateKey, ok = key.(*ecdsa.PrivateKey); !ok {
				err = fmt.Errorf("PKCS#8 key is %T, want ECDSA", key)
			}
		}
	default:
		err = fmt.Errorf("unsupported PEM block %q", block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	if privateKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("signing key must use P-256")
	}
	return &KeyManager{privateKey: privateKey, PublicKey: &privateKey.PublicKey}, nil
}

func (km *KeyManager) save(path string) error {
	der, err := x509.MarshalECPrivateKey(km.privateKey)
	if err != nil {
		return fmt.Errorf("failed to marshal signing key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	data := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write signing key: %w", err)
	}
	return nil
}

// PublicKeyPEM returns the public key in PEM format
func (km *KeyManager) PublicKeyPEM() (string, error) {
	derBytes, err := x509.MarshalPKIXPublicKey(km.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: derBytes})), nil
}

func (km *KeyManager) signer() (cose.Signer, error) {
	return cose.NewSigner(cose.AlgorithmES256, km.privateKey)
}

// ParsePublicKeyPEM decodes a PEM "PUBLIC KEY" block holding an ECDSA key.
func ParsePublicKeyPEM(publicKeyPEM string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("no PEM block in public key")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	ecdsaKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, want ECDSA", key)
	}
	return ecdsaKey, nil
}
