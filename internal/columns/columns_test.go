package columns

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"already canonical", "nickname", "nickname"},
		{"mixed case", "Nickname", "nickname"},
		{"surrounding space", "  Engine Hours ", "engine_hours"},
		{"spaces to underscores", "Last Known Engine Hrs", "last_known_engine_hrs"},
		{"hyphens and slashes", "Hours/Total-Run", "hours_total_run"},
		{"separator runs collapse", "engine - hours", "engine_hours"},
		{"punctuation dropped", "ID#", "id"},
		{"only separators", " - . ", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		available  []string
		candidates []string
		want       string
		wantOK     bool
	}{
		{
			name:       "exact match",
			available:  []string{"make", "nickname", "hours"},
			candidates: []string{"nickname", "name"},
			want:       "nickname",
			wantOK:     true,
		},
		{
			name:       "first available column wins among exact matches",
			available:  []string{"name", "nickname"},
			candidates: []string{"nickname", "name"},
			want:       "name",
			wantOK:     true,
		},
		{
			name:       "exact tier beats earlier substring column",
			available:  []string{"machine_hours", "hours"},
			candidates: []string{"hours"},
			want:       "hours",
			wantOK:     true,
		},
		{
			name:       "column contains candidate",
			available:  []string{"make", "total_engine_hours"},
			candidates: []string{"engine_hours"},
			want:       "total_engine_hours",
			wantOK:     true,
		},
		{
			name:       "candidate contains column",
			available:  []string{"make", "hrs"},
			candidates: []string{"engine_hrs"},
			want:       "hrs",
			wantOK:     true,
		},
		{
			name:       "separator-folded export headers",
			available:  []string{"tractor_name", "last_known_engine_hrs"},
			candidates: []string{"last_known_engine_hrs", "engine_hours", "hours"},
			want:       "last_known_engine_hrs",
			wantOK:     true,
		},
		{
			name:       "no match",
			available:  []string{"make", "model", "year"},
			candidates: []string{"nickname", "name"},
			want:       "",
			wantOK:     false,
		},
		{
			name:       "empty available",
			available:  nil,
			candidates: []string{"nickname"},
			want:       "",
			wantOK:     false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Resolve(tc.available, tc.candidates)
			if got != tc.want || ok != tc.wantOK {
				t.Fatalf("Resolve(%v, %v) = (%q, %v), want (%q, %v)",
					tc.available, tc.candidates, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestJaccard(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "hours", "hours", 1},
		{"disjoint", "abc", "xyz", 0},
		{"both empty", "", "", 0},
		{"one empty", "hours", "", 0},
		{"half overlap", "abc", "abd", 0.5},
		{"order and repeats ignored", "aabbc", "cba", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Jaccard(tc.a, tc.b); got != tc.want {
				t.Fatalf("Jaccard(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestSimilar(t *testing.T) {
	t.Parallel()

	available := []string{"nick_name", "model", "hourss"}
	candidates := []string{"nickname", "name"}

	// "nick_name" contains "name", so Resolve already handles it and it must
	// not be suggested again. "hourss" is nothing like any candidate.
	got := Similar(available, candidates)
	if got != nil {
		t.Fatalf("Similar(%v, %v) = %v, want nil", available, candidates, got)
	}

	// "nickmane" is a typo Resolve cannot see but Jaccard can.
	available = []string{"nickmane", "model"}
	got = Similar(available, candidates)
	if want := []string{"nickmane"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Similar(%v, %v) = %v, want %v", available, candidates, got, want)
	}
}
