package core

import (
	"crypto/sha256"
	"fmt"
)

// ComputeSettlementHash computes the digest that binds a settlement receipt to
// the auction outcome. It is used when issuing receipts and when verifying them.
//
// Formula: SHA256(auction_id + "|" + asset_id + "|" + seller + "|" + winner + "|" +
// price + "|" + fee + "|" + status + "|" + nonce)
//
// Amounts are rendered as base-10 integers in the token's smallest unit so the
// digest does not depend on any display precision.
func ComputeSettlementHash(s *Settlement, nonce string) string {
	data := fmt.Sprintf("%s|%d|%s|%s|%s|%s|%s|%s",
		s.Record.ID,
		s.Record.AssetID,
		s.Record.Seller,
		s.Winner,
		FormatAmount(s.Price),
		FormatAmount(s.Fee),
		s.Record.Status,
		nonce,
	)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
