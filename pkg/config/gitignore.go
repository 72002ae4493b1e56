package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const ignoreHeader = "# nodemap local files\n"

// EnsureIgnored adds entry to projectDir/.gitignore unless a line there
// already covers path, which is slash separated and relative to projectDir.
// Running it twice changes nothing.
func EnsureIgnored(projectDir, path, entry string) error {
	file := filepath.Join(projectDir, ".gitignore")
	content, err := os.ReadFile(file)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if ignoredBy(content, path) {
		return nil
	}
	return os.WriteFile(file, withEntry(content, entry), 0o644)
}

// ignoredBy reports whether a plain pattern line of a gitignore file covers
// path. Comments and negations are skipped.
func ignoredBy(content []byte, path string) bool {
	for _, raw := range bytes.Split(content, []byte("\n")) {
		line := strings.TrimSpace(string(raw))
		if line == "" || line[0] == '#' || line[0] == '!' {
			continue
		}
		if covers(line, path) {
			return true
		}
	}
	return false
}

// covers approximates gitignore semantics: the pattern matches path or one
// of its parent directories. A trailing slash matches directories only and
// a pattern without an inner slash matches at any depth.
func covers(pattern, path string) bool {
	dirOnly := strings.HasSuffix(pattern, "/")
	pattern = strings.Trim(pattern, "/")
	if !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern
	}

	last := len(path)
	if dirOnly {
		last = strings.LastIndexByte(path, '/')
	}
	for last > 0 {
		if ok, _ := doublestar.Match(pattern, path[:last]); ok {
			return true
		}
		last = strings.LastIndexByte(path[:last], '/')
	}
	return false
}

// withEntry returns content with a commented block for entry appended,
// separated from existing lines by a blank line.
func withEntry(content []byte, entry string) []byte {
	var b bytes.Buffer
	b.Write(content)
	if len(content) > 0 {
		if content[len(content)-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	b.WriteString(ignoreHeader)
	b.WriteString(entry)
	b.WriteByte('\n')
	return b.Bytes()
}
