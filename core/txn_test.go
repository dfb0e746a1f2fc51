package core

import (
	"context"
	"strings"
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type plainFunds struct{}

func (plainFunds) BalanceOf(context.Context, Address) (Amount, error)       { return Amount{}, nil }
func (plainFunds) Transfer(context.Context, Address, Address, Amount) error { return nil }
func (plainFunds) Pull(context.Context, Address, Amount) error              { return nil }
func (plainFunds) Account() Address                                         { return "escrow" }

type checkpointedCustody struct {
	restored int
	released int
}

func (*checkpointedCustody) OwnerOf(context.Context, AssetID) (Address, error) { return "", nil }
func (*checkpointedCustody) TransferCustody(context.Context, AssetID, Address, Address) error {
	return nil
}
func (c *checkpointedCustody) Checkpoint() Journal { return custodyJournal{c} }

type custodyJournal struct{ c *checkpointedCustody }

func (j custodyJournal) Revert() error {
	j.c.restored++
	return nil
}

func (j custodyJournal) Release() { j.c.released++ }

type failingJournal struct{ checkpointedCustody }

func (f *failingJournal) Checkpoint() Journal { return f }
func (*failingJournal) Revert() error         { return errors.New("holder moved on") }
func (*failingJournal) Release()              {}

func TestTxn_RollbackRunsCompensationsInReverse(t *testing.T) {
	custody := &checkpointedCustody{}
	tx := beginTxn(plainFunds{}, custody)

	var order []string
	tx.movedFunds("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	tx.movedFunds("second", func(context.Context) error {
		order = append(order, "second")
		return nil
	})
	tx.movedCustody("ignored", func(context.Context) error {
		order = append(order, "custody")
		return nil
	})

	cause := errors.New("step failed")
	err := tx.rollback(context.Background(), zap.NewNop(), cause)

	check.True(t, err == cause)
	check.Equal(t, []string{"second", "first"}, order)
	check.Equal(t, 1, custody.restored)

	// A second rollback is a no-op.
	check.True(t, tx.rollback(context.Background(), zap.NewNop(), cause) == cause)
	check.Equal(t, 1, custody.restored)
}

func TestTxn_RollbackReportsFailedCompensation(t *testing.T) {
	tx := beginTxn(plainFunds{}, &checkpointedCustody{})
	tx.movedFunds("refund", func(context.Context) error {
		return errors.New("ledger offline")
	})

	err := tx.rollback(context.Background(), zap.NewNop(), ErrInsufficientFunds)
	check.True(t, errors.Is(err, ErrInsufficientFunds))
	check.True(t, err != ErrInsufficientFunds)
}

func TestTxn_CommitDisablesRollback(t *testing.T) {
	custody := &checkpointedCustody{}
	tx := beginTxn(plainFunds{}, custody)
	ran := false
	tx.movedFunds("refund", func(context.Context) error {
		ran = true
		return nil
	})
	tx.commit()

	cause := errors.New("late")
	check.True(t, tx.rollback(context.Background(), zap.NewNop(), cause) == cause)
	check.False(t, ran)
	check.Equal(t, 0, custody.restored)
	check.Equal(t, 1, custody.released)
}

func TestTxn_RollbackReportsFailedJournal(t *testing.T) {
	tx := beginTxn(plainFunds{}, &failingJournal{})
	err := tx.rollback(context.Background(), zap.NewNop(), ErrTransfersPaused)
	check.True(t, errors.Is(err, ErrTransfersPaused))
	check.True(t, strings.Contains(err.Error(), "custody journal"))
}
