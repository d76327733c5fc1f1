// Package alias turns noisy free-text commodity and service names (typically
// from speech recognition) into canonical market identifiers.
//
// Resolution is a pure function of the input and the loaded tables: no cache,
// no network. Tables are loaded once and never mutated.
package alias

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"covinance/internal/apperr"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the minimum similarity accepted by the fuzzy fallback.
const DefaultThreshold = 0.8

//go:embed aliases.json
var embeddedTable []byte

// Commodity is one entry of the canonical commodity table.
type Commodity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Rare        bool   `json:"rare,omitempty"`
	SalvageOnly bool   `json:"salvage_only,omitempty"`
}

// Service is a station service with its spoken variants.
type Service struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// Table is the curated data behind a Resolver.
type Table struct {
	Commodities []Commodity       `json:"commodities"`
	Aliases     map[string]string `json:"aliases"` // phrase -> commodity id
	Services    []Service         `json:"services"`
}

// Match describes how an input was resolved.
type Match string

const (
	MatchExact       Match = "exact"
	MatchFuzzy       Match = "fuzzy"
	MatchSalvageOnly Match = "salvage_only"
	MatchNotFound    Match = "not_found"
)

// Resolution is the outcome of resolving one phrase.
type Resolution struct {
	Input      string  `json:"input"`
	ID         string  `json:"id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Match      Match   `json:"match"`
	Similarity float64 `json:"similarity"`
}

// Options tunes a Resolver.
type Options struct {
	Threshold float64 // <= 0 uses DefaultThreshold
}

// index maps normalized phrases to ids, with keys kept sorted for
// deterministic fuzzy tie-breaks.
type index struct {
	byPhrase map[string]string
	keys     []string
}

func newIndex() *index {
	return &index{byPhrase: make(map[string]string)}
}

func (ix *index) add(phrase, id string) {
	n := Normalize(phrase)
	if n == "" {
		return
	}
	if _, exists := ix.byPhrase[n]; !exists {
		ix.keys = append(ix.keys, n)
	}
	ix.byPhrase[n] = id
}

func (ix *index) seal() {
	sort.Strings(ix.keys)
}

// Resolver resolves commodity and service names.
type Resolver struct {
	threshold   float64
	commodities map[string]Commodity
	services    map[string]Service
	cIndex      *index
	sIndex      *index
}

// Load builds a Resolver from the embedded alias table.
func Load(opts Options) (*Resolver, error) {
	var t Table
	if err := json.Unmarshal(embeddedTable, &t); err != nil {
		return nil, fmt.Errorf("parse embedded alias table: %w", err)
	}
	return New(t, opts)
}

// New builds a Resolver from t. Every alias must point at a known commodity.
func New(t Table, opts Options) (*Resolver, error) {
	threshold := opts.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	r := &Resolver{
		threshold:   threshold,
		commodities: make(map[string]Commodity, len(t.Commodities)),
		services:    make(map[string]Service, len(t.Services)),
		cIndex:      newIndex(),
		sIndex:      newIndex(),
	}
	for _, c := range t.Commodities {
		if c.ID == "" {
			return nil, fmt.Errorf("commodity %q has empty id", c.Name)
		}
		r.commodities[c.ID] = c
		r.cIndex.add(c.ID, c.ID)
		r.cIndex.add(c.Name, c.ID)
	}
	phrases := make([]string, 0, len(t.Aliases))
	for phrase := range t.Aliases {
		phrases = append(phrases, phrase)
	}
	sort.Strings(phrases)
	for _, phrase := range phrases {
		id := t.Aliases[phrase]
		if _, ok := r.commodities[id]; !ok {
			return nil, fmt.Errorf("alias %q points at unknown commodity %q", phrase, id)
		}
		r.cIndex.add(phrase, id)
	}
	for _, s := range t.Services {
		r.services[s.ID] = s
		r.sIndex.add(s.ID, s.ID)
		r.sIndex.add(s.Name, s.ID)
		for _, a := range s.Aliases {
			r.sIndex.add(a, s.ID)
		}
	}
	r.cIndex.seal()
	r.sIndex.seal()
	return r, nil
}

// Threshold returns the fuzzy acceptance threshold.
func (r *Resolver) Threshold() float64 { return r.threshold }

// Commodity returns metadata for a canonical id.
func (r *Resolver) Commodity(id string) (Commodity, bool) {
	c, ok := r.commodities[id]
	return c, ok
}

// Service returns metadata for a canonical service id.
func (r *Resolver) Service(id string) (Service, bool) {
	s, ok := r.services[id]
	return s, ok
}

// Resolve maps free text to a canonical commodity id. Errors are
// apperr.KindNotFound or apperr.KindSalvageOnly; the Resolution is populated in
// both cases so callers can explain what was heard.
func (r *Resolver) Resolve(text string) (Resolution, error) {
	res := r.lookup(r.cIndex, text)
	if res.Match == MatchNotFound {
		return res, apperr.New(apperr.KindNotFound, "no commodity matches %q", text)
	}
	c := r.commodities[res.ID]
	res.Name = c.Name
	if c.SalvageOnly {
		res.Match = MatchSalvageOnly
		return res, apperr.New(apperr.KindSalvageOnly, "%s is salvage only and cannot be bought at a market", c.Name)
	}
	return res, nil
}

// ResolveService maps free text to a canonical station service id.
func (r *Resolver) ResolveService(text string) (Resolution, error) {
	res := r.lookup(r.sIndex, text)
	if res.Match == MatchNotFound {
		return res, apperr.New(apperr.KindNotFound, "no station service matches %q", text)
	}
	res.Name = r.services[res.ID].Name
	return res, nil
}

func (r *Resolver) lookup(ix *index, text string) Resolution {
	res := Resolution{Input: text, Match: MatchNotFound}
	n := Normalize(text)
	if n == "" {
		return res
	}
	if id, ok := ix.byPhrase[n]; ok {
		res.ID = id
		res.Match = MatchExact
		res.Similarity = 1
		return res
	}

	bestKey, bestSim := "", 0.0
	for _, key := range ix.keys {
		// keys are sorted, so strict > keeps the lexicographically first on ties
		if sim := Similarity(n, key); sim > bestSim {
			bestKey, bestSim = key, sim
		}
	}
	if bestKey == "" || bestSim < r.threshold {
		res.Similarity = bestSim
		return res
	}
	res.ID = ix.byPhrase[bestKey]
	res.Match = MatchFuzzy
	res.Similarity = bestSim
	return res
}

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over runes.
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

// Normalize case-folds, trims, turns separators into spaces, strips other
// punctuation and collapses whitespace: "  H.E.  Suits!" -> "he suits".
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '-' || r == '_' || r == '/':
			b.WriteRune(' ')
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
