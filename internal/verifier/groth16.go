package verifier

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"os"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/zkdrop/zkdrop-node/internal/observability"
	zkerrors "github.com/zkdrop/zkdrop-node/pkg/errors"
)

// DefaultCacheSize is the default number of verification results kept in
// the LRU cache.
const DefaultCacheSize = 4096

// VerifyingKey is a Groth16 verification key over BN254. IC must have
// one more element than the circuit has public inputs.
type VerifyingKey struct {
	Alpha bn254.G1Affine
	Beta  bn254.G2Affine
	Gamma bn254.G2Affine
	Delta bn254.G2Affine
	IC    []bn254.G1Affine
}

type g2JSON [2][2]string // [[x.a0, x.a1], [y.a0, y.a1]]

type vkJSON struct {
	Alpha [2]string   `json:"alpha"`
	Beta  g2JSON      `json:"beta"`
	Gamma g2JSON      `json:"gamma"`
	Delta g2JSON      `json:"delta"`
	IC    [][2]string `json:"ic"`
}

// LoadVerifyingKey reads a verification key from a JSON file.
func LoadVerifyingKey(path string) (*VerifyingKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read verifying key: %w", err)
	}
	return ParseVerifyingKey(data)
}

// ParseVerifyingKey decodes a verification key from JSON. Coordinates
// are decimal or 0x-hex strings; G2 coordinates list the real component
// first.
func ParseVerifyingKey(data []byte) (*VerifyingKey, error) {
	var raw vkJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse verifying key: %w", err)
	}
	if len(raw.IC) < 2 {
		return nil, fmt.Errorf("parse verifying key: ic needs at least 2 points, got %d", len(raw.IC))
	}

	vk := &VerifyingKey{IC: make([]bn254.G1Affine, len(raw.IC))}
	var err error
	if vk.Alpha, err = g1FromStrings(raw.Alpha[0], raw.Alpha[1]); err != nil {
		return nil, fmt.Errorf("parse verifying key: alpha: %w", err)
	}
	if vk.Beta, err = g2FromStrings(raw.Beta); err != nil {
		return nil, fmt.Errorf("parse verifying key: beta: %w", err)
	}
	if vk.Gamma, err = g2FromStrings(raw.Gamma); err != nil {
		return nil, fmt.Errorf("parse verifying key: gamma: %w", err)
	}
	if vk.Delta, err = g2FromStrings(raw.Delta); err != nil {
		return nil, fmt.Errorf("parse verifying key: delta: %w", err)
	}
	for i, ic := range raw.IC {
		if vk.IC[i], err = g1FromStrings(ic[0], ic[1]); err != nil {
			return nil, fmt.Errorf("parse verifying key: ic[%d]: %w", i, err)
		}
	}
	return vk, nil
}

// Groth16 verifies Groth16 proofs over BN254 with a fixed verification
// key, caching results by proof and input digest.
type Groth16 struct {
	vk      *VerifyingKey
	cache   *lru.Cache[[32]byte, bool]
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Groth16Option configures a Groth16 verifier.
type Groth16Option func(*groth16Config)

type groth16Config struct {
	cacheSize int
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// WithCacheSize sets the verification result cache size.
func WithCacheSize(n int) Groth16Option {
	return func(c *groth16Config) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Groth16Option {
	return func(c *groth16Config) { c.metrics = m }
}

// WithLogger sets the verifier logger.
func WithLogger(logger *slog.Logger) Groth16Option {
	return func(c *groth16Config) { c.logger = logger }
}

// NewGroth16 creates a Groth16 verifier. The key must carry exactly 5
// IC points, matching the circuit's 4 public inputs.
func NewGroth16(vk *VerifyingKey, opts ...Groth16Option) (*Groth16, error) {
	if len(vk.IC) != 5 {
		return nil, fmt.Errorf("verifying key has %d ic points, membership circuit needs 5", len(vk.IC))
	}

	cfg := groth16Config{cacheSize: DefaultCacheSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	cache, err := lru.New[[32]byte, bool](cfg.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create proof cache: %w", err)
	}

	return &Groth16{vk: vk, cache: cache, metrics: cfg.metrics, logger: cfg.logger}, nil
}

// Verify checks the proof against the public inputs.
func (g *Groth16) Verify(ctx context.Context, proof *Proof, inputs PublicInputs) (err error) {
	op, ctx := observability.StartOperation(ctx, g.metrics, "verifier.verify")
	defer func() { op.End(err) }()

	if proof == nil {
		return fmt.Errorf("%w: missing proof", zkerrors.ErrInvalidProof)
	}
	for i, el := range proof {
		if el == nil {
			return fmt.Errorf("%w: proof element %d missing", zkerrors.ErrInvalidProof, i)
		}
	}

	key := cacheKey(proof, inputs)
	if valid, ok := g.cache.Get(key); ok {
		if valid {
			return nil
		}
		return fmt.Errorf("%w: pairing check failed", zkerrors.ErrInvalidProof)
	}

	valid, err := g.check(proof, inputs)
	if err != nil {
		// Malformed points are a property of the proof, cacheable like
		// a failed pairing.
		g.cache.Add(key, false)
		return err
	}
	g.cache.Add(key, valid)
	if !valid {
		return fmt.Errorf("%w: pairing check failed", zkerrors.ErrInvalidProof)
	}

	g.logger.DebugContext(ctx, "proof verified", "nullifier", inputs.NullifierHash)
	return nil
}

func (g *Groth16) check(proof *Proof, inputs PublicInputs) (bool, error) {
	a, err := g1FromBig(proof[0], proof[1])
	if err != nil {
		return false, fmt.Errorf("%w: point a: %s", zkerrors.ErrInvalidProof, err)
	}
	b, err := g2FromBig(proof[3], proof[2], proof[5], proof[4])
	if err != nil {
		return false, fmt.Errorf("%w: point b: %s", zkerrors.ErrInvalidProof, err)
	}
	c, err := g1FromBig(proof[6], proof[7])
	if err != nil {
		return false, fmt.Errorf("%w: point c: %s", zkerrors.ErrInvalidProof, err)
	}

	elems, err := inputs.elements()
	if err != nil {
		return false, err
	}

	// vk_x = IC[0] + sum(input_i * IC[i+1])
	var vkx bn254.G1Affine
	vkx.Set(&g.vk.IC[0])
	for i := range elems {
		var term bn254.G1Affine
		scalar := new(big.Int)
		elems[i].BigInt(scalar)
		term.ScalarMultiplication(&g.vk.IC[i+1], scalar)
		vkx.Add(&vkx, &term)
	}

	// e(-A, B) * e(alpha, beta) * e(vk_x, gamma) * e(C, delta) == 1
	var negA bn254.G1Affine
	negA.Neg(&a)

	ok, err := bn254.PairingCheck(
		[]bn254.G1Affine{negA, g.vk.Alpha, vkx, c},
		[]bn254.G2Affine{b, g.vk.Beta, g.vk.Gamma, g.vk.Delta},
	)
	if err != nil {
		return false, fmt.Errorf("pairing check: %w", err)
	}
	return ok, nil
}

func cacheKey(proof *Proof, inputs PublicInputs) [32]byte {
	h := sha256.New()
	for _, el := range proof {
		h.Write(el.FillBytes(make([]byte, 32)))
	}
	h.Write(inputs.Root.Bytes())
	h.Write(inputs.NullifierHash.Bytes())
	h.Write(inputs.SignalHash.Bytes())
	h.Write(inputs.ExternalNullifier.Bytes())

	var key [32]byte
	h.Sum(key[:0])
	return key
}

func g1FromBig(x, y *big.Int) (bn254.G1Affine, error) {
	var p bn254.G1Affine
	if x.Cmp(fp.Modulus()) >= 0 || y.Cmp(fp.Modulus()) >= 0 {
		return p, fmt.Errorf("coordinate exceeds base field modulus")
	}
	p.X.SetBigInt(x)
	p.Y.SetBigInt(y)
	if !p.IsOnCurve() {
		return p, fmt.Errorf("point not on curve")
	}
	return p, nil
}

func g2FromBig(x0, x1, y0, y1 *big.Int) (bn254.G2Affine, error) {
	var p bn254.G2Affine
	for _, c := range []*big.Int{x0, x1, y0, y1} {
		if c.Cmp(fp.Modulus()) >= 0 {
			return p, fmt.Errorf("coordinate exceeds base field modulus")
		}
	}
	p.X.A0.SetBigInt(x0)
	p.X.A1.SetBigInt(x1)
	p.Y.A0.SetBigInt(y0)
	p.Y.A1.SetBigInt(y1)
	if !p.IsOnCurve() {
		return p, fmt.Errorf("point not on curve")
	}
	if !p.IsInSubGroup() {
		return p, fmt.Errorf("point not in subgroup")
	}
	return p, nil
}

func g1FromStrings(x, y string) (bn254.G1Affine, error) {
	bx, by, err := twoBig(x, y)
	if err != nil {
		return bn254.G1Affine{}, err
	}
	return g1FromBig(bx, by)
}

func g2FromStrings(raw g2JSON) (bn254.G2Affine, error) {
	x0, x1, err := twoBig(raw[0][0], raw[0][1])
	if err != nil {
		return bn254.G2Affine{}, err
	}
	y0, y1, err := twoBig(raw[1][0], raw[1][1])
	if err != nil {
		return bn254.G2Affine{}, err
	}
	return g2FromBig(x0, x1, y0, y1)
}

func twoBig(a, b string) (*big.Int, *big.Int, error) {
	x, ok := new(big.Int).SetString(a, 0)
	if !ok {
		return nil, nil, fmt.Errorf("invalid coordinate %q", a)
	}
	y, ok := new(big.Int).SetString(b, 0)
	if !ok {
		return nil, nil, fmt.Errorf("invalid coordinate %q", b)
	}
	return x, y, nil
}
