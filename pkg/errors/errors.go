// Package errors provides the sentinel errors shared across zkdrop
// components. The claim-rejection taxonomy lives here so callers can match
// rejections with errors.Is regardless of which component surfaced them.
package errors

import stderrors "errors"

var (
	// ErrNotFound indicates the requested airdrop does not exist.
	ErrNotFound = stderrors.New("airdrop not found")

	// ErrInvalidRoot indicates the membership root is unknown or was
	// superseded longer than the validity window ago.
	ErrInvalidRoot = stderrors.New("invalid membership root")

	// ErrInvalidProof indicates the membership proof was rejected. All
	// verification failures are reported identically; callers cannot
	// distinguish a forged proof from a wrong receiver binding.
	ErrInvalidProof = stderrors.New("invalid membership proof")

	// ErrInvalidNullifier indicates the nullifier has already been
	// consumed for this airdrop.
	ErrInvalidNullifier = stderrors.New("nullifier already consumed")

	// ErrInvalidInput indicates a malformed request.
	ErrInvalidInput = stderrors.New("invalid input")

	// ErrClosed indicates the component has been closed.
	ErrClosed = stderrors.New("closed")
)
