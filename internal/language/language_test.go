package language

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"", "", true},
		{"auto", "", true},
		{"en", "en", true},
		{"EN", "en", true},
		{"eng", "en", true},
		{"English", "en", true},
		{"fre", "fr", true},
		{"ger", "de", true},
		{" chi ", "zh", true},
		{"xx", "xx", true},
		{"klingon", "", false},
		{"e1", "", false},
		{"xyz", "", false},
	}
	for _, tt := range tests {
		got, ok := Normalize(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Normalize(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"":    "auto-detect",
		"en":  "English",
		"spa": "Spanish",
		"xx":  "XX",
	}
	for in, want := range tests {
		if got := DisplayName(in); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}
