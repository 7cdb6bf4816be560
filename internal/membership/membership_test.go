package membership

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zkdrop/zkdrop-node/internal/rootledger"
	zkerrors "github.com/zkdrop/zkdrop-node/pkg/errors"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

func newService(t *testing.T) (*Service, *rootledger.Ledger) {
	t.Helper()
	roots := rootledger.New(rootledger.WithValidityWindow(time.Hour))
	return NewService(roots, nil, nil), roots
}

func commitment(b byte) types.Hash {
	return types.BytesToHash([]byte{b})
}

func TestCreateGroup(t *testing.T) {
	svc, roots := newService(t)
	ctx := context.Background()

	root, err := svc.CreateGroup(ctx, 1, 4)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	current, ok := roots.CurrentRoot(1)
	if !ok || current != root {
		t.Errorf("ledger current = %s, %v; want %s, true", current, ok, root)
	}

	if _, err := svc.CreateGroup(ctx, 1, 4); !errors.Is(err, ErrGroupExists) {
		t.Errorf("duplicate create = %v, want ErrGroupExists", err)
	}
	if _, err := svc.CreateGroup(ctx, 0, 4); !errors.Is(err, zkerrors.ErrInvalidInput) {
		t.Errorf("zero group id = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.CreateGroup(ctx, 2, MaxDepth+1); !errors.Is(err, zkerrors.ErrInvalidInput) {
		t.Errorf("oversized depth = %v, want ErrInvalidInput", err)
	}
}

func TestRootEvolvesPerInsert(t *testing.T) {
	svc, roots := newService(t)
	ctx := context.Background()

	initial, err := svc.CreateGroup(ctx, 1, 8)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	seen := map[types.Hash]bool{initial: true}
	prev := initial
	for i := byte(1); i <= 8; i++ {
		root, err := svc.AddMember(ctx, 1, commitment(i))
		if err != nil {
			t.Fatalf("add member %d: %v", i, err)
		}
		if root == prev {
			t.Errorf("insert %d did not change the root", i)
		}
		if seen[root] {
			t.Errorf("insert %d repeated an earlier root", i)
		}
		seen[root] = true
		prev = root

		current, _ := roots.CurrentRoot(1)
		if current != root {
			t.Errorf("ledger current = %s, want %s", current, root)
		}
		// The superseded root stays acceptable inside the window.
		if !roots.IsAcceptable(1, initial, roots.Now()) {
			t.Errorf("initial root rejected after insert %d", i)
		}
	}

	count, err := svc.MemberCount(1)
	if err != nil || count != 8 {
		t.Errorf("member count = %d, %v; want 8, nil", count, err)
	}
}

func TestDeterministicRoots(t *testing.T) {
	build := func() types.Hash {
		svc, _ := newService(t)
		ctx := context.Background()
		if _, err := svc.CreateGroup(ctx, 1, 10); err != nil {
			t.Fatalf("create group: %v", err)
		}
		var root types.Hash
		var err error
		for i := byte(1); i <= 5; i++ {
			if root, err = svc.AddMember(ctx, 1, commitment(i)); err != nil {
				t.Fatalf("add member: %v", err)
			}
		}
		return root
	}

	if build() != build() {
		t.Error("identical insert sequences produced different roots")
	}
}

func TestTreeFull(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.CreateGroup(ctx, 1, 1); err != nil {
		t.Fatalf("create group: %v", err)
	}

	for i := byte(1); i <= 2; i++ {
		if _, err := svc.AddMember(ctx, 1, commitment(i)); err != nil {
			t.Fatalf("add member %d: %v", i, err)
		}
	}
	if _, err := svc.AddMember(ctx, 1, commitment(3)); !errors.Is(err, ErrTreeFull) {
		t.Fatalf("overfull insert = %v, want ErrTreeFull", err)
	}
}

func TestUnknownGroup(t *testing.T) {
	svc, _ := newService(t)

	if _, err := svc.Root(9); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("Root = %v, want ErrGroupNotFound", err)
	}
	if _, err := svc.MemberCount(9); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("MemberCount = %v, want ErrGroupNotFound", err)
	}
	if _, err := svc.AddMember(context.Background(), 9, commitment(1)); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("AddMember = %v, want ErrGroupNotFound", err)
	}
}

func TestRejectsNonCanonicalCommitment(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.CreateGroup(ctx, 1, 4); err != nil {
		t.Fatalf("create group: %v", err)
	}

	// All-0xff exceeds the BN254 scalar field modulus.
	var oversized types.Hash
	for i := range oversized {
		oversized[i] = 0xff
	}
	if _, err := svc.AddMember(ctx, 1, oversized); !errors.Is(err, zkerrors.ErrInvalidInput) {
		t.Fatalf("oversized commitment = %v, want ErrInvalidInput", err)
	}
}
