package auctionapi

import (
	"time"

	"github.com/cloudx-io/auctionhouse/core"
)

// Request and response types. Every message on the socket and HTTP surfaces
// carries one of these in its "type" field.
const (
	TypePing          = "ping"
	TypePong          = "pong"
	TypeError         = "error"
	TypeCreateAuction = "create_auction"
	TypeBid           = "bid"
	TypeFinishAuction = "finish_auction"
	TypeCancelAuction = "cancel_auction"
	TypeGetAuction    = "get_auction"
	TypeGetTreasury   = "get_treasury"

	// Devnet operations on the reference token and asset registry.
	TypeMintTokens  = "mint_tokens"
	TypeApprove     = "approve"
	TypeMintAsset   = "mint_asset"
	TypeSetOperator = "set_operator"
	TypeBalanceOf   = "balance_of"
	TypeOwnerOf     = "owner_of"
)

// Request is the single envelope accepted by the auction house. Amounts are
// base-10 integers in the token's smallest unit.
type Request struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Caller    string `json:"caller,omitempty"`

	AssetID         uint64 `json:"asset_id,omitempty"`
	Amount          string `json:"amount,omitempty"`
	StartingPrice   string `json:"starting_price,omitempty"`
	DurationSeconds int64  `json:"duration_seconds,omitempty"`

	Account  string `json:"account,omitempty"`
	Spender  string `json:"spender,omitempty"`
	Operator string `json:"operator,omitempty"`
	Approved bool   `json:"approved,omitempty"`

	Name     string            `json:"name,omitempty"`
	URI      string            `json:"uri,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Response is returned for every request. On failure Success is false, Code
// holds the error taxonomy name and Message the wrapped error text.
type Response struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Success   bool   `json:"success"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`

	Auction    *AuctionView    `json:"auction,omitempty"`
	History    []AuctionView   `json:"history,omitempty"`
	Settlement *SettlementView `json:"settlement,omitempty"`
	Receipt    *SignedReceipt  `json:"receipt,omitempty"`
	Treasury   *TreasuryView   `json:"treasury,omitempty"`
	Balance    string          `json:"balance,omitempty"`
	Owner      string          `json:"owner,omitempty"`
	AssetID    uint64          `json:"asset_id,omitempty"`

	ProcessingTime int64 `json:"processing_time_ms"`
	Timestamp      int64 `json:"timestamp"`
}

// AuctionView is the wire form of core.AuctionRecord.
type AuctionView struct {
	ID            string     `json:"id"`
	AssetID       uint64     `json:"asset_id"`
	Seller        string     `json:"seller"`
	StartingPrice string     `json:"starting_price"`
	HighestBid    string     `json:"highest_bid"`
	HighestBidder string     `json:"highest_bidder,omitempty"`
	EndTime       time.Time  `json:"end_time"`
	Status        string     `json:"status"`
	BidCount      int        `json:"bid_count"`
	CreatedAt     time.Time  `json:"created_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
}

func NewAuctionView(r core.AuctionRecord) AuctionView {
	v := AuctionView{
		ID:            r.ID,
		AssetID:       uint64(r.AssetID),
		Seller:        string(r.Seller),
		StartingPrice: core.FormatAmount(r.StartingPrice),
		HighestBid:    core.FormatAmount(r.HighestBid),
		HighestBidder: string(r.HighestBidder),
		EndTime:       r.EndTime,
		Status:        r.Status.String(),
		BidCount:      r.BidCount,
		CreatedAt:     r.CreatedAt,
	}
	if !r.ClosedAt.IsZero() {
		closed := r.ClosedAt
		v.ClosedAt = &closed
	}
	return v
}

func NewAuctionViews(records []core.AuctionRecord) []AuctionView {
	if len(records) == 0 {
		return nil
	}
	out := make([]AuctionView, len(records))
	for i, r := range records {
		out[i] = NewAuctionView(r)
	}
	return out
}

// SettlementView is the wire form of core.Settlement.
type SettlementView struct {
	AuctionID      string `json:"auction_id"`
	AssetID        uint64 `json:"asset_id"`
	Status         string `json:"status"`
	Seller         string `json:"seller"`
	Winner         string `json:"winner,omitempty"`
	Price          string `json:"price"`
	Fee            string `json:"fee"`
	SellerProceeds string `json:"seller_proceeds"`
	Treasury       string `json:"treasury"`
}

func NewSettlementView(s core.Settlement) SettlementView {
	return SettlementView{
		AuctionID:      s.Record.ID,
		AssetID:        uint64(s.Record.AssetID),
		Status:         s.Record.Status.String(),
		Seller:         string(s.Record.Seller),
		Winner:         string(s.Winner),
		Price:          core.FormatAmount(s.Price),
		Fee:            core.FormatAmount(s.Fee),
		SellerProceeds: core.FormatAmount(s.SellerProceeds),
		Treasury:       string(s.Treasury),
	}
}

// TreasuryView reports the fee configuration. FeeRate is the human readable
// ratio, e.g. "0.1".
type TreasuryView struct {
	Treasury       string `json:"treasury"`
	FeeNumerator   uint64 `json:"fee_numerator"`
	FeeDenominator uint64 `json:"fee_denominator"`
	FeeRate        string `json:"fee_rate"`
}

func NewTreasuryView(f core.FeeConfig) TreasuryView {
	return TreasuryView{
		Treasury:       string(f.Treasury),
		FeeNumerator:   f.Numerator,
		FeeDenominator: f.Denominator,
		FeeRate:        f.Rate().String(),
	}
}

// PCRs represents the Platform Configuration Registers from AWS Nitro Enclaves
type PCRs struct {
	// PCR0: Hash of the Enclave Image File (EIF)
	ImageFileHash string `json:"0"`

	// PCR1: Hash of the Linux kernel and initial RAM data (initramfs)
	KernelHash string `json:"1"`

	// PCR2: Hash of user applications, excluding the boot ramfs
	ApplicationHash string `json:"2"`

	// PCR3: Hash of the IAM role assigned to the parent instance
	IAMRoleHash string `json:"3"`

	// PCR4: Hash of the parent instance's ID
	InstanceIDHash string `json:"4"`

	// PCR8: Hash of the enclave image file's signing certificate
	SigningCertHash string `json:"8,omitempty"`
}

// AttestationDoc is the decoded payload of a Nitro attestation document.
type AttestationDoc struct {
	ModuleID        string    `json:"module_id"`
	Timestamp       time.Time `json:"timestamp"`
	DigestAlgorithm string    `json:"digest"`
	PCRs            PCRs      `json:"pcrs"`
	Certificate     string    `json:"certificate"`
	CABundle        []string  `json:"cabundle"`
	PublicKey       string    `json:"public_key"`
	Nonce           string    `json:"nonce"`
}

// ReceiptAttestationUserData is embedded in the attestation that accompanies a
// settlement receipt. It binds the receipt hash to the key that signed it.
type ReceiptAttestationUserData struct {
	ReceiptID      string    `json:"receipt_id"`
	AuctionID      string    `json:"auction_id"`
	SettlementHash string    `json:"settlement_hash"`
	KeyAlgorithm   string    `json:"key_algorithm"`
	PublicKey      string    `json:"public_key"`
	Timestamp      time.Time `json:"timestamp"`
}

// ReceiptAttestationDoc is an attestation document with receipt user data.
type ReceiptAttestationDoc struct {
	AttestationDoc
	UserData *ReceiptAttestationUserData `json:"user_data"`
}
