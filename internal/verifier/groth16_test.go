package verifier

import (
	"fmt"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254"
)

// testVerifyingKey builds a key whose points are valid curve points. It
// cannot validate a real proof, which is fine for structural tests.
func testVerifyingKey(t *testing.T) *VerifyingKey {
	t.Helper()

	_, _, g1, g2 := bn254.Generators()

	vk := &VerifyingKey{
		Alpha: g1,
		Beta:  g2,
		Gamma: g2,
		Delta: g2,
		IC:    make([]bn254.G1Affine, 5),
	}
	for i := range vk.IC {
		vk.IC[i] = g1
	}
	return vk
}

func TestParseVerifyingKeyRoundTrip(t *testing.T) {
	_, _, g1, g2 := bn254.Generators()

	g1s := fmt.Sprintf(`["%s", "%s"]`, g1.X.String(), g1.Y.String())
	g2s := fmt.Sprintf(`[["%s", "%s"], ["%s", "%s"]]`,
		g2.X.A0.String(), g2.X.A1.String(), g2.Y.A0.String(), g2.Y.A1.String())

	data := fmt.Sprintf(`{
		"alpha": %s,
		"beta": %s,
		"gamma": %s,
		"delta": %s,
		"ic": [%s, %s, %s, %s, %s]
	}`, g1s, g2s, g2s, g2s, g1s, g1s, g1s, g1s, g1s)

	vk, err := ParseVerifyingKey([]byte(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !vk.Alpha.Equal(&g1) {
		t.Error("alpha mismatch")
	}
	if !vk.Beta.Equal(&g2) {
		t.Error("beta mismatch")
	}
	if len(vk.IC) != 5 {
		t.Errorf("ic length = %d, want 5", len(vk.IC))
	}
}

func TestParseVerifyingKeyRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{"},
		{"off-curve alpha", `{"alpha": ["1", "1"], "beta": [["0","0"],["0","0"]], "gamma": [["0","0"],["0","0"]], "delta": [["0","0"],["0","0"]], "ic": [["1","2"],["1","2"]]}`},
		{"too few ic", `{"alpha": ["1", "2"], "beta": [["0","0"],["0","0"]], "gamma": [["0","0"],["0","0"]], "delta": [["0","0"],["0","0"]], "ic": [["1","2"]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseVerifyingKey([]byte(tt.data)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}
