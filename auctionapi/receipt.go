package auctionapi

import (
	"fmt"
	"time"

	"github.com/cloudx-io/auctionhouse/core"
)

// SettlementReceipt records the outcome of a closed auction. Its CBOR encoding
// is the payload of the signed COSE_Sign1 receipt.
type SettlementReceipt struct {
	ID             string `cbor:"id" json:"id"`
	AuctionID      string `cbor:"auction_id" json:"auction_id"`
	AssetID        uint64 `cbor:"asset_id" json:"asset_id"`
	Status         string `cbor:"status" json:"status"`
	Seller         string `cbor:"seller" json:"seller"`
	Winner         string `cbor:"winner" json:"winner,omitempty"`
	Price          string `cbor:"price" json:"price"`
	Fee            string `cbor:"fee" json:"fee"`
	SellerProceeds string `cbor:"seller_proceeds" json:"seller_proceeds"`
	Treasury       string `cbor:"treasury" json:"treasury"`
	ClosedAt       int64  `cbor:"closed_at" json:"closed_at"` // unix milliseconds
	Nonce          string `cbor:"nonce" json:"nonce"`
	Hash           string `cbor:"hash" json:"hash"`
}

// NewSettlementReceipt builds the receipt for s and fills in its hash.
func NewSettlementReceipt(id string, s core.Settlement, nonce string) SettlementReceipt {
	return SettlementReceipt{
		ID:             id,
		AuctionID:      s.Record.ID,
		AssetID:        uint64(s.Record.AssetID),
		Status:         s.Record.Status.String(),
		Seller:         string(s.Record.Seller),
		Winner:         string(s.Winner),
		Price:          core.FormatAmount(s.Price),
		Fee:            core.FormatAmount(s.Fee),
		SellerProceeds: core.FormatAmount(s.SellerProceeds),
		Treasury:       string(s.Treasury),
		ClosedAt:       s.Record.ClosedAt.UnixMilli(),
		Nonce:          nonce,
		Hash:           core.ComputeSettlementHash(&s, nonce),
	}
}

// Settlement reconstructs the settlement fields covered by the receipt.
func (r *SettlementReceipt) Settlement() (core.Settlement, error) {
	price, err := core.ParseAmount(r.Price)
	if err != nil {
		return core.Settlement{}, fmt.Errorf("parse price: %w", err)
	}
	fee, err := core.ParseAmount(r.Fee)
	if err != nil {
		return core.Settlement{}, fmt.Errorf("parse fee: %w", err)
	}
	proceeds, err := core.ParseAmount(r.SellerProceeds)
	if err != nil {
		return core.Settlement{}, fmt.Errorf("parse seller proceeds: %w", err)
	}
	return core.Settlement{
		Record: core.AuctionRecord{
			ID:       r.AuctionID,
			AssetID:  core.AssetID(r.AssetID),
			Seller:   core.Address(r.Seller),
			Status:   core.ParseStatus(r.Status),
			ClosedAt: time.UnixMilli(r.ClosedAt).UTC(),
		},
		Winner:         core.Address(r.Winner),
		Price:          price,
		Fee:            fee,
		SellerProceeds: proceeds,
		Treasury:       core.Address(r.Treasury),
	}, nil
}

// ComputeHash recomputes the settlement hash from the receipt's fields.
func (r *SettlementReceipt) ComputeHash() (string, error) {
	s, err := r.Settlement()
	if err != nil {
		return "", err
	}
	return core.ComputeSettlementHash(&s, r.Nonce), nil
}

// SignedReceipt is a receipt together with its COSE_Sign1 envelope and, when
// issued inside an enclave, the attestation document over its hash.
type SignedReceipt struct {
	Receipt               SettlementReceipt `json:"receipt"`
	ReceiptCOSEBase64     COSEBase64        `json:"receipt_cose_base64"`
	AttestationCOSEBase64 COSEBase64        `json:"attestation_cose_base64,omitempty"`
}
