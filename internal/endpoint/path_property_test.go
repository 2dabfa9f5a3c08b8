package endpoint

import (
	"regexp"
	"testing"

	"pgregory.net/rapid"
)

var pathPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{10}$`)

// Property: every generated path is exactly PathLength URL-safe characters
func TestProperty_PathShape(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		path, err := NewPath()
		if err != nil {
			t.Fatalf("NewPath failed: %v", err)
		}
		if !pathPattern.MatchString(path) {
			t.Fatalf("path %q does not match %s", path, pathPattern)
		}
	})
}

func TestNewPath_UniqueOverLargeSample(t *testing.T) {
	const n = 100000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		path, err := NewPath()
		if err != nil {
			t.Fatalf("NewPath failed: %v", err)
		}
		if _, dup := seen[path]; dup {
			t.Fatalf("duplicate path %q after %d draws", path, i)
		}
		seen[path] = struct{}{}
	}
}
