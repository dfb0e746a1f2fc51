package validation

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cloudx-io/auctionhouse/auctionapi"
)

// pcrHexLen is the hex length of one Nitro PCR (a SHA-384 digest).
const pcrHexLen = 2 * sha512.Size384

// LoadPCRsFromFile loads the enclave measurements a receipt attestation may
// carry. Every set must hold three SHA-384 hex digests; they are returned
// lower-cased.
func LoadPCRsFromFile(path string) ([]PCRSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read PCR file: %w", err)
	}

	var config PCRConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse PCR file %s: %w", path, err)
	}
	if len(config.PCRSets) == 0 {
		return nil, fmt.Errorf("PCR file %s lists no sets", path)
	}

	sets := make([]PCRSet, 0, len(config.PCRSets))
	for i, set := range config.PCRSets {
		normalized, err := set.normalize()
		if err != nil {
			return nil, fmt.Errorf("PCR file %s: set #%d (commit %q): %w", path, i, set.CommitHash, err)
		}
		sets = append(sets, normalized)
	}
	return sets, nil
}

func (s PCRSet) normalize() (PCRSet, error) {
	out := s
	for _, pcr := range []struct {
		name string
		v    *string
	}{{"pcr0", &out.PCR0}, {"pcr1", &out.PCR1}, {"pcr2", &out.PCR2}} {
		v := strings.ToLower(strings.TrimSpace(*pcr.v))
		if len(v) != pcrHexLen {
			return PCRSet{}, fmt.Errorf("%s has %d hex digits, want %d", pcr.name, len(v), pcrHexLen)
		}
		if _, err := hex.DecodeString(v); err != nil {
			return PCRSet{}, fmt.Errorf("%s: %w", pcr.name, err)
		}
		*pcr.v = v
	}
	return out, nil
}

// MatchPCRs returns the index of the first accepted set equal to the
// attested measurements, ignoring hex case, or -1.
func MatchPCRs(pcrs auctionapi.PCRs, accepted []PCRSet) int {
	for i, set := range accepted {
		if strings.EqualFold(pcrs.ImageFileHash, set.PCR0) &&
			strings.EqualFold(pcrs.KernelHash, set.PCR1) &&
			strings.EqualFold(pcrs.ApplicationHash, set.PCR2) {
			return i
		}
	}
	return -1
}
