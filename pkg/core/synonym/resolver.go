package synonym

import (
	"sort"
	"sync/atomic"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog"

	"financial_dashboard/pkg/models"
)

// Match sources.
const (
	SourceClientOverride = "client_override"
	SourceExact          = "exact"
	SourceAlias          = "alias"
	SourceFuzzy          = "fuzzy"
)

// DefaultFuzzyThreshold is the minimum similarity (exclusive) for a fuzzy hit.
const DefaultFuzzyThreshold = 0.7

// Match is the result of resolving one field name.
type Match struct {
	Canonical  models.CanonicalField `json:"canonical"`
	Confidence float64               `json:"confidence"`
	Source     string                `json:"source"`
	Similarity float64               `json:"similarity,omitempty"`
}

// Resolver resolves field names against a swappable dictionary snapshot.
// Safe for concurrent use.
type Resolver struct {
	dict      atomic.Pointer[Dictionary]
	threshold float64
	log       zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithThreshold overrides the fuzzy similarity threshold.
func WithThreshold(th float64) Option {
	return func(r *Resolver) { r.threshold = th }
}

// WithLogger sets the resolver logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// NewResolver creates a resolver over dict. A nil dict uses DefaultEntries.
func NewResolver(dict *Dictionary, opts ...Option) *Resolver {
	if dict == nil {
		dict = NewDictionary(DefaultEntries())
	}
	r := &Resolver{threshold: DefaultFuzzyThreshold, log: zerolog.Nop()}
	for _, o := range opts {
		o(r)
	}
	r.dict.Store(dict)
	return r
}

// Swap atomically replaces the dictionary. In-flight lookups keep the old one.
func (r *Resolver) Swap(dict *Dictionary) {
	if dict == nil {
		return
	}
	r.dict.Store(dict)
	r.log.Info().Int("keys", dict.Len()).Msg("synonym dictionary swapped")
}

// Dictionary returns the current snapshot.
func (r *Resolver) Dictionary() *Dictionary { return r.dict.Load() }

// Resolve maps fieldName to a canonical field. overrides maps normalized raw
// names to canonical fields for the current client and may be nil.
func (r *Resolver) Resolve(fieldName string, overrides map[string]models.CanonicalField) (*Match, bool) {
	key := Normalize(fieldName)
	if key == "" {
		return nil, false
	}

	if c, ok := overrides[key]; ok {
		return &Match{Canonical: c, Confidence: 1.0, Source: SourceClientOverride}, true
	}

	dict := r.dict.Load()
	if e, ok := dict.index[key]; ok {
		return &Match{Canonical: e.canonical, Confidence: e.score, Source: e.source}, true
	}

	bestSim := 0.0
	var best indexEntry
	for _, k := range dict.keys {
		s := Similarity(key, k)
		if s > bestSim {
			bestSim = s
			best = dict.index[k]
		}
	}
	if bestSim > r.threshold {
		return &Match{
			Canonical:  best.canonical,
			Confidence: best.score * bestSim,
			Source:     SourceFuzzy,
			Similarity: bestSim,
		}, true
	}
	return nil, false
}

// Similarity is 1 - levenshtein(a,b)/max(len(a),len(b)) over runes.
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return float64(maxLen-dist) / float64(maxLen)
}

// Resolved is one raw field bound to its canonical target.
type Resolved struct {
	RawName string
	Value   interface{}
	Match   Match
}

// Resolution is the outcome of resolving a whole raw field set.
type Resolution struct {
	Fields   []Resolved
	Mapping  []models.MappingDecision
	Unmapped []string
}

// ResolveAll resolves every key of raw in sorted key order. When two raw keys
// land on the same canonical field the later one wins and the decision is
// flagged Overwrote. Unmatched keys are listed in Unmapped, never dropped.
func (r *Resolver) ResolveAll(raw models.RawFieldSet, overrides map[string]models.CanonicalField) *Resolution {
	names := make([]string, 0, len(raw))
	for k := range raw {
		names = append(names, k)
	}
	sort.Strings(names)

	res := &Resolution{}
	pos := make(map[models.CanonicalField]int)
	for _, name := range names {
		m, ok := r.Resolve(name, overrides)
		if !ok {
			res.Unmapped = append(res.Unmapped, name)
			r.log.Debug().Str("field", name).Msg("no canonical match")
			continue
		}
		dec := models.MappingDecision{
			RawName:    name,
			Canonical:  m.Canonical,
			Confidence: m.Confidence,
			Source:     m.Source,
		}
		entry := Resolved{RawName: name, Value: raw[name], Match: *m}
		if i, dup := pos[m.Canonical]; dup {
			dec.Overwrote = true
			r.log.Warn().
				Str("field", name).
				Str("previous", res.Fields[i].RawName).
				Str("canonical", string(m.Canonical)).
				Msg("duplicate canonical mapping, last writer wins")
			res.Fields[i] = entry
		} else {
			pos[m.Canonical] = len(res.Fields)
			res.Fields = append(res.Fields, entry)
		}
		res.Mapping = append(res.Mapping, dec)
	}
	return res
}
