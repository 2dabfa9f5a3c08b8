package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestFS_UpAndDownPairs(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no migrations embedded")
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f] = true
	}
	for _, f := range files {
		var pair string
		switch {
		case strings.HasSuffix(f, ".up.sql"):
			pair = strings.TrimSuffix(f, ".up.sql") + ".down.sql"
		case strings.HasSuffix(f, ".down.sql"):
			pair = strings.TrimSuffix(f, ".down.sql") + ".up.sql"
		default:
			t.Errorf("unexpected migration file name %s", f)
			continue
		}
		if !seen[pair] {
			t.Errorf("%s has no matching %s", f, pair)
		}
	}
}
