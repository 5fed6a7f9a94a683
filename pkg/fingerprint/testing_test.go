package fingerprint_test

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

var testFiles = []struct {
	name    string
	content string
}{
	{
		name:    "1.txt",
		content: "hello there",
	},
	{
		name:    "2.sql",
		content: "SELECT 1;",
	},
	{
		name:    "3.txt",
		content: "general kenobi",
	},
}

func setupTestDir(t *testing.T) string {
	t.Helper()

	tmp := t.TempDir()

	for _, f := range testFiles {
		if err := os.WriteFile(filepath.Join(tmp, f.name), []byte(f.content), 0644); err != nil {
			t.Fatalf("failed to write test file %q: %v", f.name, err)
		}
	}

	return tmp
}

func testMapFS() fstest.MapFS {
	fsys := fstest.MapFS{}
	for _, f := range testFiles {
		fsys[f.name] = &fstest.MapFile{Data: []byte(f.content)}
	}

	return fsys
}
