// Package membership maintains MiMC incremental merkle trees of
// identity commitments, one per group. Every insertion produces a new
// root, which is recorded in the root ledger so in-flight proofs
// against the previous root stay claimable for the validity window.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"github.com/zkdrop/zkdrop-node/internal/observability"
	"github.com/zkdrop/zkdrop-node/internal/rootledger"
	zkerrors "github.com/zkdrop/zkdrop-node/pkg/errors"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

const (
	// DefaultDepth is the default tree depth for new groups.
	DefaultDepth = 20

	// MaxDepth bounds the tree depth a group can request.
	MaxDepth = 32
)

var (
	// ErrGroupExists indicates a group id is already in use.
	ErrGroupExists = errors.New("group already exists")

	// ErrGroupNotFound indicates no group with the given id exists.
	ErrGroupNotFound = errors.New("group not found")

	// ErrTreeFull indicates the group's tree has no free leaves left.
	ErrTreeFull = errors.New("membership tree full")
)

type group struct {
	depth     int
	nextIndex uint64
	filled    []fr.Element
	root      fr.Element
}

// Service manages membership trees and feeds new roots into the ledger.
type Service struct {
	mu      sync.RWMutex
	groups  map[types.GroupID]*group
	ledger  *rootledger.Ledger
	metrics *observability.Metrics
	logger  *slog.Logger

	// zeros[i] is the root of an empty subtree of height i.
	zeros []fr.Element
}

// NewService creates a membership service recording roots into ledger.
func NewService(ledger *rootledger.Ledger, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	zeros := make([]fr.Element, MaxDepth+1)
	for i := 1; i <= MaxDepth; i++ {
		zeros[i] = hashPair(zeros[i-1], zeros[i-1])
	}

	return &Service{
		groups:  make(map[types.GroupID]*group),
		ledger:  ledger,
		metrics: metrics,
		logger:  logger,
		zeros:   zeros,
	}
}

// CreateGroup creates an empty tree for the group. A depth of 0 selects
// DefaultDepth. The empty root is recorded in the ledger immediately.
func (s *Service) CreateGroup(ctx context.Context, id types.GroupID, depth int) (root types.Hash, err error) {
	op, ctx := observability.StartOperation(ctx, s.metrics, "membership.create_group")
	defer func() { op.End(err) }()

	if id == 0 {
		return types.Hash{}, fmt.Errorf("%w: group id required", zkerrors.ErrInvalidInput)
	}
	if depth == 0 {
		depth = DefaultDepth
	}
	if depth < 1 || depth > MaxDepth {
		return types.Hash{}, fmt.Errorf("%w: depth must be between 1 and %d", zkerrors.ErrInvalidInput, MaxDepth)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[id]; exists {
		return types.Hash{}, fmt.Errorf("%w: group %s", ErrGroupExists, id)
	}

	g := &group{
		depth:  depth,
		filled: make([]fr.Element, depth),
		root:   s.zeros[depth],
	}
	s.groups[id] = g

	root = elementToHash(g.root)
	s.ledger.Record(id, root, s.ledger.Now())

	s.logger.InfoContext(ctx, "membership group created", "group", id, "depth", depth)
	return root, nil
}

// AddMember inserts an identity commitment into the group's tree and
// records the new root. The commitment must be a canonical field
// element.
func (s *Service) AddMember(ctx context.Context, id types.GroupID, commitment types.Hash) (root types.Hash, err error) {
	op, ctx := observability.StartOperation(ctx, s.metrics, "membership.add_member")
	defer func() { op.End(err) }()

	leaf, err := hashToElement(commitment)
	if err != nil {
		return types.Hash{}, fmt.Errorf("%w: commitment: %s", zkerrors.ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		return types.Hash{}, fmt.Errorf("%w: group %s", ErrGroupNotFound, id)
	}
	if g.nextIndex >= uint64(1)<<g.depth {
		return types.Hash{}, fmt.Errorf("%w: group %s at depth %d", ErrTreeFull, id, g.depth)
	}

	index := g.nextIndex
	g.nextIndex++

	cur := leaf
	for level := 0; level < g.depth; level++ {
		if index&1 == 0 {
			g.filled[level] = cur
			cur = hashPair(cur, s.zeros[level])
		} else {
			cur = hashPair(g.filled[level], cur)
		}
		index >>= 1
	}
	g.root = cur

	root = elementToHash(g.root)
	s.ledger.Record(id, root, s.ledger.Now())

	s.logger.InfoContext(ctx, "member added", "group", id, "index", g.nextIndex-1, "root", root)
	return root, nil
}

// Root returns the current root of the group's tree.
func (s *Service) Root(id types.GroupID) (types.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return types.Hash{}, fmt.Errorf("%w: group %s", ErrGroupNotFound, id)
	}
	return elementToHash(g.root), nil
}

// MemberCount returns the number of members in the group.
func (s *Service) MemberCount(id types.GroupID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return 0, fmt.Errorf("%w: group %s", ErrGroupNotFound, id)
	}
	return g.nextIndex, nil
}

func hashPair(left, right fr.Element) fr.Element {
	h := mimc.NewMiMC()
	lb := left.Bytes()
	rb := right.Bytes()
	h.Write(lb[:])
	h.Write(rb[:])

	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

func hashToElement(h types.Hash) (fr.Element, error) {
	var el fr.Element
	if err := el.SetBytesCanonical(h.Bytes()); err != nil {
		return fr.Element{}, err
	}
	return el, nil
}

func elementToHash(el fr.Element) types.Hash {
	b := el.Bytes()
	return types.BytesToHash(b[:])
}
