package keys

import (
	"regexp"
	"strings"
	"testing"
	"unicode"
)

func TestGeocode_CaseAndSpaceInsensitive(t *testing.T) {
	k1 := Geocode("  Miami, FL ")
	k2 := Geocode("miami, fl")
	if k1 != k2 {
		t.Fatalf("normalized keys differ:\n k1=%s\n k2=%s", k1, k2)
	}
	if !regexp.MustCompile(`^geocode:[A-Za-z0-9_\-]*:q=[0-9a-f]{16}$`).MatchString(k1) {
		t.Fatalf("unexpected key shape: %s", k1)
	}
}

func TestGeocode_DifferentQueriesDiffer(t *testing.T) {
	if Geocode("33172") == Geocode("33101") {
		t.Fatal("different queries must produce different keys")
	}
}

func TestGeocode_UnicodeAndLongInputStayBounded(t *testing.T) {
	k := Geocode("São Paulo " + strings.Repeat("x", 500))
	for _, r := range k {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q in %s", r, k)
		}
	}
	if len(k) > len("geocode:")+maxTextLen+len(":q=")+16 {
		t.Fatalf("key too long: %d", len(k))
	}
}

func TestTile_DependsOnBothParts(t *testing.T) {
	a := Tile([]byte(`{"result":"0"}`), []byte(`{"min":0}`))
	b := Tile([]byte(`{"result":"0"}`), []byte(`{"min":1}`))
	c := Tile([]byte(`{"result":"0"}`), []byte(`{"min":0}`))
	if a == b {
		t.Fatal("vis params must affect the key")
	}
	if a != c {
		t.Fatal("tile keys must be deterministic")
	}
	if !strings.HasPrefix(a, "tile:") {
		t.Fatalf("missing prefix: %s", a)
	}
}
