// Package verifier checks zero-knowledge membership proofs. A proof
// demonstrates that the prover belongs to a membership group without
// revealing which member it is, binds the claim to a receiver address
// through the signal hash, and derives its nullifier from the airdrop's
// external nullifier so each member can claim each airdrop at most once.
package verifier

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	zkerrors "github.com/zkdrop/zkdrop-node/pkg/errors"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

// ProofLength is the number of field elements in a serialized Groth16
// proof over BN254: G1 point A, G2 point B, G1 point C.
const ProofLength = 8

// Proof is a Groth16 proof in its flat on-wire form:
//
//	[A.X, A.Y, B.X.A1, B.X.A0, B.Y.A1, B.Y.A0, C.X, C.Y]
//
// with the imaginary component of each G2 coordinate first.
type Proof [ProofLength]*big.Int

// ParseProof decodes a proof from decimal or 0x-hex strings.
func ParseProof(parts []string) (*Proof, error) {
	if len(parts) != ProofLength {
		return nil, fmt.Errorf("%w: proof must have %d elements, got %d",
			zkerrors.ErrInvalidInput, ProofLength, len(parts))
	}
	var p Proof
	for i, s := range parts {
		n := new(big.Int)
		if _, ok := n.SetString(s, 0); !ok {
			return nil, fmt.Errorf("%w: proof element %d is not a number", zkerrors.ErrInvalidInput, i)
		}
		if n.Sign() < 0 {
			return nil, fmt.Errorf("%w: proof element %d is negative", zkerrors.ErrInvalidInput, i)
		}
		p[i] = n
	}
	return &p, nil
}

// PublicInputs are the four public signals of the membership circuit, in
// circuit order.
type PublicInputs struct {
	Root              types.Hash
	NullifierHash     types.Hash
	SignalHash        types.Hash
	ExternalNullifier types.Hash
}

func (in PublicInputs) elements() ([]fr.Element, error) {
	hashes := [...]types.Hash{in.Root, in.NullifierHash, in.SignalHash, in.ExternalNullifier}
	out := make([]fr.Element, len(hashes))
	for i, h := range hashes {
		n := new(big.Int).SetBytes(h.Bytes())
		if n.Cmp(fr.Modulus()) >= 0 {
			return nil, fmt.Errorf("%w: public input %d exceeds field modulus", zkerrors.ErrInvalidProof, i)
		}
		out[i].SetBigInt(n)
	}
	return out, nil
}

// Verifier checks a proof against its public inputs. An invalid or
// malformed proof yields an error wrapping ErrInvalidProof; other errors
// indicate verifier failure, not proof invalidity.
type Verifier interface {
	Verify(ctx context.Context, proof *Proof, inputs PublicInputs) error
}

// ExternalNullifier derives the per-airdrop external nullifier as the
// MiMC hash of the airdrop id. Every claim against the same airdrop
// shares this value, which is what scopes nullifiers per airdrop.
func ExternalNullifier(id types.AirdropID) types.Hash {
	var buf [fr.Bytes]byte
	binary.BigEndian.PutUint64(buf[fr.Bytes-8:], uint64(id))

	h := mimc.NewMiMC()
	h.Write(buf[:])
	return types.BytesToHash(h.Sum(nil))
}

// SignalHash binds a claim to its receiver address by hashing the
// address into the field with MiMC. A proof generated for one receiver
// cannot settle a claim for another.
func SignalHash(receiver types.Address) types.Hash {
	var buf [fr.Bytes]byte
	copy(buf[fr.Bytes-types.AddressLength:], receiver.Bytes())

	h := mimc.NewMiMC()
	h.Write(buf[:])
	return types.BytesToHash(h.Sum(nil))
}
