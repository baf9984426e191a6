package normalization

import "testing"

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Hollow Knight  ", "hollow knight"},
		{"NieR:Automata™", "nierautomata"},
		{"OlliOlli World", "olliolli world"},
		{"A  Short   Hike", "a short hike"},
		{"!!!", ""},
	}
	for _, tc := range cases {
		if got := NormalizeTitle(tc.in); got != tc.want {
			t.Fatalf("NormalizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTitlesMatch(t *testing.T) {
	if !TitlesMatch("Hollow Knight™", "hollow  knight") {
		t.Fatal("decorated titles should match")
	}
	if TitlesMatch("Celeste", "Tunic") {
		t.Fatal("distinct titles must not match")
	}
	if TitlesMatch("", "") {
		t.Fatal("empty titles must not match")
	}
}
