package matcher

import (
	"errors"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/store"
)

var (
	// ErrNotFound reports an unknown listing, product or offer.
	ErrNotFound = store.ErrNotFound
	// ErrAlreadyResolved reports a state transition that lost to an earlier one.
	ErrAlreadyResolved = errors.New("already resolved")
	// ErrSelfMergeRejected reports a merge whose source and target are the same product.
	ErrSelfMergeRejected = errors.New("cannot merge a product into itself")
	// ErrHistoryNotFound reports an unknown history entry.
	ErrHistoryNotFound = errors.New("history entry not found")
	// ErrAlreadyReverted reports a second revert of the same history entry.
	ErrAlreadyReverted = errors.New("history entry already reverted")
	// ErrNotRevertible reports a history entry with no inverse action.
	ErrNotRevertible = errors.New("history entry cannot be reverted")

	errOfferMoved = errors.New("offer moved to another product")
	errSkipped    = errors.New("offer no longer eligible")
)
