package iox

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// transactionsDir is the directory below the database root holding the
// catalog's transaction log.
const transactionsDir = "transactions"

// TransactionKind tells a delta transaction apart from a checkpoint.
type TransactionKind int

const (
	// Delta is a transaction holding changes since the previous revision.
	Delta TransactionKind = iota
	// Checkpoint is a transaction holding the full catalog state.
	Checkpoint
)

func (k TransactionKind) extension() string {
	if k == Checkpoint {
		return "ckpt"
	}
	return "txn"
}

func (k TransactionKind) String() string {
	switch k {
	case Delta:
		return "delta"
	case Checkpoint:
		return "checkpoint"
	}
	return "TransactionKind(" + strconv.Itoa(int(k)) + ")"
}

// ErrBadTransactionPath means a path under the transactions directory does not
// follow the naming scheme of TransactionPath.
var ErrBadTransactionPath = errors.New("not a transaction path")

// Transaction refers to one file in a database's transaction log.
type Transaction struct {
	relativePath RelativePath
}

func newTransaction(r RelativePath) Transaction {
	return Transaction{relativePath: r}
}

// RelativePath returns the location of the transaction inside its database.
func (t Transaction) RelativePath() RelativePath {
	return t.relativePath
}

func (t Transaction) String() string {
	return t.relativePath.String()
}

// TransactionInfo is what the name of a transaction file says about it.
type TransactionInfo struct {
	Revision uint64
	UUID     uuid.UUID
	Kind     TransactionKind
}

// TransactionPath names the file for a transaction:
//
//	transactions/<revision, 20 digits>/<uuid>.txn
//	transactions/<revision, 20 digits>/<uuid>.ckpt
//
// The padding makes lexical order match revision order.
func TransactionPath(revision uint64, id uuid.UUID, kind TransactionKind) RelativePath {
	return NewRelativePath(
		transactionsDir,
		fmt.Sprintf("%020d", revision),
		id.String()+"."+kind.extension(),
	)
}

// Parse reads the revision, uuid and kind from the transaction's path.
func (t Transaction) Parse() (TransactionInfo, error) {
	var info TransactionInfo
	parts := t.relativePath.parts
	if len(parts) != 3 || parts[0] != transactionsDir || len(parts[1]) != 20 {
		return info, errors.Wrapf(ErrBadTransactionPath, "%q", t.String())
	}
	rev, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return info, errors.Wrapf(ErrBadTransactionPath, "%q: revision: %s", t.String(), err)
	}
	i := strings.LastIndexByte(parts[2], '.')
	if i < 0 {
		return info, errors.Wrapf(ErrBadTransactionPath, "%q: no extension", t.String())
	}
	switch parts[2][i+1:] {
	case "txn":
		info.Kind = Delta
	case "ckpt":
		info.Kind = Checkpoint
	default:
		return info, errors.Wrapf(ErrBadTransactionPath, "%q: unknown extension", t.String())
	}
	id, err := uuid.Parse(parts[2][:i])
	if err != nil {
		return info, errors.Wrapf(ErrBadTransactionPath, "%q: uuid: %s", t.String(), err)
	}
	// only the lower case hyphenated form names a transaction, so each
	// transaction has exactly one path
	if id.String() != parts[2][:i] {
		return info, errors.Wrapf(ErrBadTransactionPath, "%q: uuid is not in canonical form", t.String())
	}
	info.Revision = rev
	info.UUID = id
	return info, nil
}

// ParseTransactionPath reads the revision, uuid and kind from a path made by
// TransactionPath.
func ParseTransactionPath(r RelativePath) (TransactionInfo, error) {
	return newTransaction(r).Parse()
}
