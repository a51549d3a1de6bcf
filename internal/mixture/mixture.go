package mixture

// #region vector
// Vector is a sparse weight map over emergent domain labels. Domains are
// not drawn from a fixed taxonomy; labels appear as callers introduce them.
// A Vector may be empty (domain unknown) and refined later.
type Vector struct {
	Components map[string]float64 `json:"components"`
	Normalized bool               `json:"normalized"`
	Metadata   map[string]any     `json:"metadata,omitempty"`
}

// New returns an empty, unnormalized vector.
func New() Vector {
	return Vector{Components: map[string]float64{}}
}

// FromComponents builds a vector from an existing weight map.
// The map is copied; the caller keeps ownership of its argument.
func FromComponents(components map[string]float64) Vector {
	v := New()
	for k, w := range components {
		v.Components[k] = w
	}
	return v
}
// #endregion vector

// #region accessors
// Weight returns the weight for a domain, 0 if absent.
func (v Vector) Weight(domain string) float64 {
	return v.Components[domain]
}

// Set assigns a weight to a domain and clears the normalized flag.
func (v *Vector) Set(domain string, weight float64) {
	if v.Components == nil {
		v.Components = map[string]float64{}
	}
	v.Components[domain] = weight
	v.Normalized = false
}

// Sum returns the total weight across all domains.
func (v Vector) Sum() float64 {
	var total float64
	for _, w := range v.Components {
		total += w
	}
	return total
}

// Domains returns the number of distinct domains with a recorded weight.
func (v Vector) Domains() int {
	return len(v.Components)
}
// #endregion accessors

// #region normalize
// Normalize divides every weight by the total so weights sum to 1.
// No-op (and the flag stays unset) when the total is zero or negative.
func (v *Vector) Normalize() {
	total := v.Sum()
	if total <= 0 {
		v.Normalized = false
		return
	}
	for k, w := range v.Components {
		v.Components[k] = w / total
	}
	v.Normalized = true
}
// #endregion normalize

// #region merge
// Merge adds the other vector's weights into this one. The result is
// unnormalized regardless of the inputs.
func (v *Vector) Merge(other Vector) {
	if v.Components == nil {
		v.Components = map[string]float64{}
	}
	for k, w := range other.Components {
		v.Components[k] += w
	}
	v.Normalized = false
}
// #endregion merge

// #region clone
// Clone returns a deep copy. Updates are copy-on-write everywhere a
// vector is embedded in a versioned record, so shared maps are never
// mutated through a previously returned record.
func (v Vector) Clone() Vector {
	out := Vector{Normalized: v.Normalized}
	if v.Components != nil {
		out.Components = make(map[string]float64, len(v.Components))
		for k, w := range v.Components {
			out.Components[k] = w
		}
	}
	if v.Metadata != nil {
		out.Metadata = make(map[string]any, len(v.Metadata))
		for k, val := range v.Metadata {
			out.Metadata[k] = val
		}
	}
	return out
}
// #endregion clone
