package domain

import "testing"

func TestPrincipal_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   Principal
		want bool
	}{
		{"alice", true},
		{"a", true},
		{"rrkah-fqaaa-aaaaa-aaaaq-cai", true},
		{"", false},
		{"-alice", false},
		{"alice-", false},
		{"Alice", false},
		{"al ice", false},
		{"al_ice", false},
	}
	for _, tt := range tests {
		if got := tt.in.Valid(); got != tt.want {
			t.Errorf("Principal(%q).Valid() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizePrincipal(t *testing.T) {
	t.Parallel()

	if got := NormalizePrincipal("  Bob \n"); got != "bob" {
		t.Fatalf("NormalizePrincipal = %q, want %q", got, "bob")
	}
}
