package models

import "sort"

// RawFieldSet is the extracted key/value data of an uploaded file. Values are
// strings, numbers, or nil.
type RawFieldSet map[string]interface{}

// Unit is the magnitude in which monetary values are expressed.
type Unit string

const (
	UnitEuros     Unit = "euros"
	UnitThousands Unit = "thousands"
	UnitMillions  Unit = "millions"
)

// Factor returns the number of euros one value in u represents.
func (u Unit) Factor() float64 {
	switch u {
	case UnitThousands:
		return 1e3
	case UnitMillions:
		return 1e6
	default:
		return 1
	}
}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	return u == UnitEuros || u == UnitThousands || u == UnitMillions
}

// Provenance records where a canonical value came from.
type Provenance string

const (
	ProvenanceReported  Provenance = "reported"
	ProvenanceDerived   Provenance = "derived"
	ProvenanceSynthetic Provenance = "synthetic"
)

// MappingDecision documents how one raw key was resolved.
type MappingDecision struct {
	RawName    string         `json:"raw_name"`
	Canonical  CanonicalField `json:"canonical"`
	Confidence float64        `json:"confidence"`
	Source     string         `json:"source"`
	Overwrote  bool           `json:"overwrote,omitempty"`
}

// FieldStats counts fields entering and surviving cleaning.
type FieldStats struct {
	InputFields   int `json:"input_fields"`
	CleanedFields int `json:"cleaned_fields"`
}

// CanonicalFieldSet is the normalized output of the cleaning stages. All
// values share a single Unit.
type CanonicalFieldSet struct {
	Values     map[CanonicalField]float64    `json:"values"`
	Unit       Unit                          `json:"unit"`
	Provenance map[CanonicalField]Provenance `json:"provenance"`
	Mapping    []MappingDecision             `json:"mapping,omitempty"`
	Unmapped   []string                      `json:"unmapped,omitempty"`
	Stats      FieldStats                    `json:"stats"`
}

// NewFieldSet returns an empty set in the given unit.
func NewFieldSet(unit Unit) *CanonicalFieldSet {
	return &CanonicalFieldSet{
		Values:     make(map[CanonicalField]float64),
		Unit:       unit,
		Provenance: make(map[CanonicalField]Provenance),
	}
}

// Get returns the value of f and whether it is present.
func (s *CanonicalFieldSet) Get(f CanonicalField) (float64, bool) {
	if s == nil || s.Values == nil {
		return 0, false
	}
	v, ok := s.Values[f]
	return v, ok
}

// Has reports whether f is present.
func (s *CanonicalFieldSet) Has(f CanonicalField) bool {
	_, ok := s.Get(f)
	return ok
}

// Set stores v for f with the given provenance.
func (s *CanonicalFieldSet) Set(f CanonicalField, v float64, p Provenance) {
	if s.Values == nil {
		s.Values = make(map[CanonicalField]float64)
	}
	if s.Provenance == nil {
		s.Provenance = make(map[CanonicalField]Provenance)
	}
	s.Values[f] = v
	s.Provenance[f] = p
}

// ProvenanceOf returns the provenance of f, defaulting to reported.
func (s *CanonicalFieldSet) ProvenanceOf(f CanonicalField) Provenance {
	if p, ok := s.Provenance[f]; ok {
		return p
	}
	return ProvenanceReported
}

// Fields returns the present fields in sorted order.
func (s *CanonicalFieldSet) Fields() []CanonicalField {
	out := make([]CanonicalField, 0, len(s.Values))
	for f := range s.Values {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a deep copy of s.
func (s *CanonicalFieldSet) Clone() *CanonicalFieldSet {
	if s == nil {
		return nil
	}
	c := &CanonicalFieldSet{
		Values:     make(map[CanonicalField]float64, len(s.Values)),
		Unit:       s.Unit,
		Provenance: make(map[CanonicalField]Provenance, len(s.Provenance)),
		Mapping:    append([]MappingDecision(nil), s.Mapping...),
		Unmapped:   append([]string(nil), s.Unmapped...),
		Stats:      s.Stats,
	}
	for k, v := range s.Values {
		c.Values[k] = v
	}
	for k, v := range s.Provenance {
		c.Provenance[k] = v
	}
	return c
}
