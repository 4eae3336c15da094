package batch

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover returns the files under path. A regular file is returned as is;
// a directory is walked recursively and its regular files whose names end in
// ext (any name when ext is empty) are returned sorted.
func Discover(path, ext string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ext != "" && !strings.HasSuffix(d.Name(), ext) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	sort.Strings(files)
	return files, nil
}

// ReadFileList reads one path per line from listPath, expanding directories
// with Discover. Blank lines are ignored.
func ReadFileList(listPath, ext string) ([]string, error) {
	lines, err := readLines(listPath)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range lines {
		found, err := Discover(line, ext)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

// ReadExcludeList reads base names to skip, one per line.
func ReadExcludeList(path string) (map[string]struct{}, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		set[filepath.Base(line)] = struct{}{}
	}
	return set, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
