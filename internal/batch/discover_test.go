package batch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.txt":          "b",
		"a.txt":          "a",
		"notes.md":       "n",
		"sub/c.txt":      "c",
		"sub/deep/d.txt": "d",
	})

	t.Run("directory with extension filter", func(t *testing.T) {
		files, err := Discover(root, ".txt")
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		var rel []string
		for _, f := range files {
			r, _ := filepath.Rel(root, f)
			rel = append(rel, filepath.ToSlash(r))
		}
		want := "a.txt,b.txt,sub/c.txt,sub/deep/d.txt"
		if got := strings.Join(rel, ","); got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("no filter", func(t *testing.T) {
		files, err := Discover(root, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(files) != 5 {
			t.Errorf("expected 5 files, got %d", len(files))
		}
	})

	t.Run("single file ignores filter", func(t *testing.T) {
		files, err := Discover(filepath.Join(root, "notes.md"), ".txt")
		if err != nil {
			t.Fatal(err)
		}
		if len(files) != 1 {
			t.Errorf("expected the file itself, got %v", files)
		}
	})

	t.Run("missing path", func(t *testing.T) {
		if _, err := Discover(filepath.Join(root, "nope"), ""); err == nil {
			t.Error("expected error for a missing path")
		}
	})
}

func TestReadFileList(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"one.txt":     "1",
		"dir/two.txt": "2",
		"dir/x.md":    "x",
	})
	list := filepath.Join(root, "list")
	content := filepath.Join(root, "one.txt") + "\n\n" + filepath.Join(root, "dir") + "\n"
	if err := os.WriteFile(list, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := ReadFileList(list, ".txt")
	if err != nil {
		t.Fatalf("ReadFileList() error = %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "one.txt" || filepath.Base(files[1]) != "two.txt" {
		t.Errorf("unexpected files %v", files)
	}
}

func TestReadExcludeList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude")
	if err := os.WriteFile(path, []byte("a.txt\n  \nsome/dir/b.txt\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	set, err := ReadExcludeList(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 2 {
		t.Fatalf("expected 2 names, got %v", set)
	}
	if _, ok := set["b.txt"]; !ok {
		t.Error("expected base name b.txt")
	}
}
