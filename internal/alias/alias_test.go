package alias

import (
	"errors"
	"testing"

	"covinance/internal/apperr"
)

func loadResolver(t *testing.T, threshold float64) *Resolver {
	t.Helper()
	r, err := Load(Options{Threshold: threshold})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return r
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Azure Milk", "azure milk"},
		{"  H.E.  Suits!", "he suits"},
		{"Agri-Medicines", "agri medicines"},
		{"gold?", "gold"},
		{"\tLow   Temp\nDiamonds ", "low temp diamonds"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve_ExactAlias(t *testing.T) {
	r := loadResolver(t, 0)
	res, err := r.Resolve("Azure Milk")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ID != "bluemilk" || res.Match != MatchExact {
		t.Errorf("Resolve = %+v, want bluemilk exact", res)
	}
	if res.Name != "Azure Milk" {
		t.Errorf("Name = %q", res.Name)
	}
}

func TestResolve_CanonicalIDAndDisplayName(t *testing.T) {
	r := loadResolver(t, 0)
	for _, in := range []string{"lowtemperaturediamond", "Low Temperature Diamonds", "LTDs", "ltd"} {
		res, err := r.Resolve(in)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", in, err)
		}
		if res.ID != "lowtemperaturediamond" {
			t.Errorf("Resolve(%q).ID = %q", in, res.ID)
		}
	}
}

func TestResolve_FuzzyTypo(t *testing.T) {
	r := loadResolver(t, 0.8)
	res, err := r.Resolve("azuree milk")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ID != "bluemilk" || res.Match != MatchFuzzy {
		t.Errorf("Resolve = %+v, want bluemilk fuzzy", res)
	}
	if res.Similarity < 0.8 {
		t.Errorf("Similarity = %v, want >= 0.8", res.Similarity)
	}
}

func TestResolve_FuzzyBelowThreshold(t *testing.T) {
	r := loadResolver(t, 0.95)
	res, err := r.Resolve("azuree milk")
	if !errors.Is(err, apperr.NotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
	if res.Match != MatchNotFound || res.ID != "" {
		t.Errorf("Resolve = %+v, want not found", res)
	}
}

func TestResolve_Unknown(t *testing.T) {
	r := loadResolver(t, 0)
	if _, err := r.Resolve("quantum marmalade"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("err = %v, want NotFound", err)
	}
	if _, err := r.Resolve("   "); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("blank err = %v, want NotFound", err)
	}
}

func TestResolve_SalvageOnly(t *testing.T) {
	r := loadResolver(t, 0)
	res, err := r.Resolve("Guardian Relics")
	if !errors.Is(err, apperr.SalvageOnly) {
		t.Fatalf("err = %v, want SalvageOnly", err)
	}
	if errors.Is(err, apperr.NotFound) {
		t.Error("salvage must be distinct from NotFound")
	}
	if res.ID != "ancientrelic" || res.Match != MatchSalvageOnly {
		t.Errorf("Resolve = %+v", res)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r := loadResolver(t, 0)
	inputs := []string{"azuree milk", "gould", "tritum", "nothing like it", "Black Box"}
	for _, in := range inputs {
		first, firstErr := r.Resolve(in)
		for i := 0; i < 20; i++ {
			again, err := r.Resolve(in)
			if again != first || apperr.KindOf(err) != apperr.KindOf(firstErr) {
				t.Fatalf("Resolve(%q) changed: %+v/%v vs %+v/%v", in, first, firstErr, again, err)
			}
		}
	}

	// Independent resolvers over the same table agree.
	other := loadResolver(t, 0)
	for _, in := range inputs {
		a, _ := r.Resolve(in)
		b, _ := other.Resolve(in)
		if a != b {
			t.Errorf("resolvers disagree on %q: %+v vs %+v", in, a, b)
		}
	}
}

func TestResolveService(t *testing.T) {
	r := loadResolver(t, 0)
	res, err := r.ResolveService("Interstellar Factors")
	if err != nil {
		t.Fatalf("ResolveService: %v", err)
	}
	if res.ID != "interstellar_factors" {
		t.Errorf("ID = %q", res.ID)
	}
	if _, err := r.ResolveService("spa treatment"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestNew_RejectsDanglingAlias(t *testing.T) {
	_, err := New(Table{
		Commodities: []Commodity{{ID: "gold", Name: "Gold"}},
		Aliases:     map[string]string{"shiny": "silver"},
	}, Options{})
	if err == nil {
		t.Fatal("expected error for alias to unknown commodity")
	}
}

func TestSimilarity(t *testing.T) {
	if s := Similarity("gold", "gold"); s != 1 {
		t.Errorf("Similarity(equal) = %v", s)
	}
	if s := Similarity("", ""); s != 1 {
		t.Errorf("Similarity(empty) = %v", s)
	}
	if s := Similarity("abcd", "abcx"); s != 0.75 {
		t.Errorf("Similarity = %v, want 0.75", s)
	}
}
