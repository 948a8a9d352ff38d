package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanStrings cleans every item of `ss` and drops the empty ones and the duplicates.
func CleanStrings(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	cleaned := make([]string, 0, len(ss))
	for _, s := range ss {
		s = CleanString(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		cleaned = append(cleaned, s)
	}
	return cleaned
}

// Getwd finds the project root, i.e. the closest parent directory holding the go.mod file.
// go-test changes the working directory to the package being tested.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd // not in a module (e.g. a deployed binary)
		}
		currDir = newDir
	}
}
