package parsing

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ExtractCOSEPayload extracts the payload from a COSE_Sign1 4-element array
// COSE_Sign1 structure: [protected, unprotected, payload, signature]
// Returns the payload bytes (element 2)
func ExtractCOSEPayload(coseBytes []byte) ([]byte, error) {
	parts, err := SplitCOSESign1(coseBytes)
	if err != nil {
		return nil, err
	}
	return parts.Payload, nil
}

// COSESign1Parts holds the byte fields of an untagged COSE_Sign1 array.
type COSESign1Parts struct {
	Protected []byte
	Payload   []byte
	Signature []byte
}

// SplitCOSESign1 decodes the four-element COSE_Sign1 array produced by the
// Nitro security module. The unprotected header map is discarded.
func SplitCOSESign1(coseBytes []byte) (COSESign1Parts, error) {
	var coseArray []any
	if err := cbor.Unmarshal(coseBytes, &coseArray); err != nil {
		return COSESign1Parts{}, fmt.Errorf("parse COSE array: %w", err)
	}

	if len(coseArray) != 4 {
		return COSESign1Parts{}, fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(coseArray))
	}

	protected, ok := coseArray[0].([]byte)
	if !ok {
		return COSESign1Parts{}, fmt.Errorf("invalid protected headers")
	}
	payload, ok := coseArray[2].([]byte)
	if !ok {
		return COSESign1Parts{}, fmt.Errorf("invalid payload in COSE structure")
	}
	signature, ok := coseArray[3].([]byte)
	if !ok {
		return COSESign1Parts{}, fmt.Errorf("invalid signature")
	}

	return COSESign1Parts{Protected: protected, Payload: payload, Signature: signature}, nil
}
