// ABOUTME: Tests for version constants
// ABOUTME: Ensures version information is properly defined
package version

import (
	"strings"
	"testing"
)

func TestConstantsDefined(t *testing.T) {
	for name, v := range map[string]string{
		"Version":      Version,
		"Product":      Product,
		"Manufacturer": Manufacturer,
	} {
		if v == "" || len(v) > 100 {
			t.Errorf("%s = %q", name, v)
		}
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, Product) || !strings.HasSuffix(s, Version) {
		t.Errorf("String() = %q", s)
	}
}
