package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const defaultDiscoveryDepth = 4

// DiscoverItemFiles lists files below root that match one of the doublestar
// patterns, descending at most maxDepth directories and never into hidden
// ones. A leading ~ in root is expanded. The result is sorted.
func DiscoverItemFiles(root string, patterns []string, maxDepth int) []string {
	root = expandHome(root)
	if maxDepth <= 0 {
		maxDepth = defaultDiscoveryDepth
	}

	var found []string
	walk := func(rel string, d fs.DirEntry, err error) error {
		switch {
		case err != nil && d != nil && d.IsDir():
			return fs.SkipDir
		case err != nil:
			return nil
		case d.IsDir():
			if rel != "." && (strings.HasPrefix(d.Name(), ".") || depth(rel) > maxDepth) {
				return fs.SkipDir
			}
		case matchesAny(patterns, rel):
			found = append(found, filepath.Join(root, filepath.FromSlash(rel)))
		}
		return nil
	}
	_ = fs.WalkDir(os.DirFS(root), ".", walk)

	slices.Sort(found)
	return found
}

// depth counts the directories in a slash separated relative path.
func depth(rel string) int {
	return strings.Count(rel, "/") + 1
}

func matchesAny(patterns []string, rel string) bool {
	return slices.ContainsFunc(patterns, func(p string) bool {
		ok, _ := doublestar.Match(p, rel)
		return ok
	})
}

// FindProjectRoot returns the nearest directory at or above dir holding a
// .nodemap directory. The search stops at the user's home directory.
func FindProjectRoot(dir string) (string, bool) {
	home, _ := os.UserHomeDir()
	for {
		if fi, err := os.Stat(filepath.Join(dir, DirName)); err == nil && fi.IsDir() {
			return dir, true
		}
		up := filepath.Dir(dir)
		if up == dir || (home != "" && dir == home) {
			return "", false
		}
		dir = up
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
