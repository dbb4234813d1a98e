package iox

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionPath(t *testing.T) {
	id := uuid.MustParse("6f9a7b52-3c1d-4c8e-9a4f-0d5b2e7c1a33")
	var table = []struct {
		revision uint64
		kind     TransactionKind
		output   string
	}{
		{0, Delta, "transactions/00000000000000000000/6f9a7b52-3c1d-4c8e-9a4f-0d5b2e7c1a33.txn"},
		{42, Checkpoint, "transactions/00000000000000000042/6f9a7b52-3c1d-4c8e-9a4f-0d5b2e7c1a33.ckpt"},
		{18446744073709551615, Delta, "transactions/18446744073709551615/6f9a7b52-3c1d-4c8e-9a4f-0d5b2e7c1a33.txn"},
	}
	for _, tab := range table {
		r := TransactionPath(tab.revision, id, tab.kind)
		assert.Equal(t, tab.output, r.String())

		info, err := newTransaction(r).Parse()
		require.NoError(t, err)
		assert.Equal(t, TransactionInfo{Revision: tab.revision, UUID: id, Kind: tab.kind}, info)
	}
}

func TestTransactionParseRejects(t *testing.T) {
	var table = []RelativePath{
		NewRelativePath("transactions"),
		NewRelativePath("data", "00000000000000000000", "6f9a7b52-3c1d-4c8e-9a4f-0d5b2e7c1a33.txn"),
		NewRelativePath("transactions", "0", "6f9a7b52-3c1d-4c8e-9a4f-0d5b2e7c1a33.txn"),
		NewRelativePath("transactions", "0000000000000000000x", "6f9a7b52-3c1d-4c8e-9a4f-0d5b2e7c1a33.txn"),
		NewRelativePath("transactions", "00000000000000000000", "6f9a7b52-3c1d-4c8e-9a4f-0d5b2e7c1a33"),
		NewRelativePath("transactions", "00000000000000000000", "6f9a7b52-3c1d-4c8e-9a4f-0d5b2e7c1a33.json"),
		NewRelativePath("transactions", "00000000000000000000", "not-a-uuid.txn"),
		NewRelativePath("transactions", "00000000000000000000", "x", "y.txn"),
		// other spellings uuid.Parse accepts
		NewRelativePath("transactions", "00000000000000000000", "urn:uuid:6f9a7b52-3c1d-4c8e-9a4f-0d5b2e7c1a33.txn"),
		NewRelativePath("transactions", "00000000000000000000", "{6f9a7b52-3c1d-4c8e-9a4f-0d5b2e7c1a33}.txn"),
		NewRelativePath("transactions", "00000000000000000000", "6f9a7b523c1d4c8e9a4f0d5b2e7c1a33.txn"),
		NewRelativePath("transactions", "00000000000000000000", "6F9A7B52-3C1D-4C8E-9A4F-0D5B2E7C1A33.ckpt"),
	}
	for _, r := range table {
		_, err := newTransaction(r).Parse()
		assert.Equal(t, ErrBadTransactionPath, errors.Cause(err), "path %s", r)
	}
}

func TestTransactionKindString(t *testing.T) {
	assert.Equal(t, "delta", Delta.String())
	assert.Equal(t, "checkpoint", Checkpoint.String())
	assert.Equal(t, "TransactionKind(7)", TransactionKind(7).String())
}

func TestParseTransactionPath(t *testing.T) {
	id := uuid.MustParse("0b4f2d61-8e7a-4b3c-a1d2-9c8e7f6a5b40")
	info, err := ParseTransactionPath(TransactionPath(3, id, Delta))
	require.NoError(t, err)
	assert.Equal(t, TransactionInfo{Revision: 3, UUID: id, Kind: Delta}, info)

	_, err = ParseTransactionPath(NewRelativePath("transactions", "junk"))
	assert.Equal(t, ErrBadTransactionPath, errors.Cause(err))
}
