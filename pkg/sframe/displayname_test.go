package sframe

import "testing"

func TestParseSFUDisplayName(t *testing.T) {
	cases := []struct {
		name         string
		wantIdentity string
		wantLeaf     uint32
		wantOK       bool
	}{
		{"alice#3", "alice", 3, true},
		{"bob.smith@example.com#42", "bob.smith@example.com", 42, true},
		{"trailing-hash#", "", 0, false},
		{"no-hash-at-all", "", 0, false},
		{"#5", "", 5, true},
		{"weird#name#7", "weird#name", 7, true},
		{"negative#-1", "", 0, false},
		{"overflow#99999999999", "", 0, false},
	}

	for _, c := range cases {
		identity, leaf, ok := ParseSFUDisplayName(c.name)
		if ok != c.wantOK {
			t.Errorf("ParseSFUDisplayName(%q) ok = %v, want %v", c.name, ok, c.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if identity != c.wantIdentity || leaf != c.wantLeaf {
			t.Errorf("ParseSFUDisplayName(%q) = (%q, %d), want (%q, %d)",
				c.name, identity, leaf, c.wantIdentity, c.wantLeaf)
		}
	}
}
