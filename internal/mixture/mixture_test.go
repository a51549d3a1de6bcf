package mixture

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	v := FromComponents(map[string]float64{"latency": 3, "cache": 1})
	v.Normalize()

	if !v.Normalized {
		t.Fatal("expected normalized flag set")
	}
	if got := v.Weight("latency"); math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("latency weight: expected 0.75, got %f", got)
	}
	if got := v.Sum(); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("sum: expected 1.0, got %f", got)
	}
}

func TestNormalizeZeroSum(t *testing.T) {
	cases := []struct {
		name       string
		components map[string]float64
	}{
		{"empty", map[string]float64{}},
		{"zero weights", map[string]float64{"a": 0, "b": 0}},
		{"negative sum", map[string]float64{"a": -2, "b": 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := FromComponents(tc.components)
			v.Normalize()
			if v.Normalized {
				t.Fatal("expected normalized flag unset for non-positive sum")
			}
			for k, w := range tc.components {
				if v.Weight(k) != w {
					t.Fatalf("weight %s changed: %f -> %f", k, w, v.Weight(k))
				}
			}
		})
	}
}

func TestSetClearsNormalized(t *testing.T) {
	v := FromComponents(map[string]float64{"a": 1})
	v.Normalize()
	v.Set("b", 0.5)
	if v.Normalized {
		t.Fatal("Set should clear the normalized flag")
	}
}

func TestMerge(t *testing.T) {
	a := FromComponents(map[string]float64{"x": 1, "y": 2})
	b := FromComponents(map[string]float64{"y": 3, "z": 1})
	a.Merge(b)

	if a.Weight("y") != 5 {
		t.Fatalf("expected merged y=5, got %f", a.Weight("y"))
	}
	if a.Domains() != 3 {
		t.Fatalf("expected 3 domains, got %d", a.Domains())
	}
	if a.Normalized {
		t.Fatal("merge result must be unnormalized")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := FromComponents(map[string]float64{"a": 1})
	cp := orig.Clone()
	cp.Set("a", 9)

	if orig.Weight("a") != 1 {
		t.Fatalf("clone mutation leaked into original: %f", orig.Weight("a"))
	}
}

func TestSetOnZeroValue(t *testing.T) {
	var v Vector
	v.Set("a", 1)
	if v.Weight("a") != 1 {
		t.Fatalf("expected 1, got %f", v.Weight("a"))
	}
}
