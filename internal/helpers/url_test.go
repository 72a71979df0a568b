package helpers

import "testing"

func TestCanonicalURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "https://Example.COM/Shoes", "https://example.com/Shoes"},
		{"defaults scheme", "example.com/p", "https://example.com/p"},
		{"strips default port", "https://example.com:443/p", "https://example.com/p"},
		{"strips fragment", "https://example.com/p#reviews", "https://example.com/p"},
		{"drops tracking params", "https://example.com/p?utm_source=x&fbclid=y&size=10", "https://example.com/p?size=10"},
		{"sorts query params", "https://example.com/p?b=2&a=1", "https://example.com/p?a=1&b=2"},
		{"cleans path", "https://example.com/a/../b", "https://example.com/b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CanonicalURL(tc.in)
			if err != nil {
				t.Fatalf("CanonicalURL(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("CanonicalURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCanonicalURLRejectsEmpty(t *testing.T) {
	if _, err := CanonicalURL("   "); err == nil {
		t.Fatal("expected error for blank url")
	}
}

func TestDomain(t *testing.T) {
	if got := Domain("https://www.Nike.com/shoes?x=1"); got != "nike.com" {
		t.Errorf("Domain = %q", got)
	}
	if got := Domain("not a url at all"); got != "not a url at all" {
		t.Errorf("Domain fallback = %q", got)
	}
}
