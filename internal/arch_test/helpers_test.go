package arch_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

const (
	modulePath  = "github.com/papapumpkin/pares"
	internalPfx = modulePath + "/internal/"
)

// internalDirPath returns internal/, resolved from the test's working
// directory (internal/arch_test).
func internalDirPath(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	return filepath.Dir(wd)
}

// repoRoot is the module root holding go.mod.
func repoRoot(t *testing.T) string {
	t.Helper()
	root := filepath.Dir(internalDirPath(t))
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
		t.Fatalf("no go.mod at %s: %v", root, err)
	}
	return root
}

// internalPackages names every directory under internal/ that holds Go
// source, arch_test excluded.
func internalPackages(t *testing.T) []string {
	t.Helper()
	dir := internalDirPath(t)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	var pkgs []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "arch_test" {
			continue
		}
		if len(sourceFiles(t, filepath.Join(dir, e.Name()), false)) > 0 {
			pkgs = append(pkgs, e.Name())
		}
	}
	sort.Strings(pkgs)
	return pkgs
}

// sourceFiles lists the .go files of dir, test files only when asked.
func sourceFiles(t *testing.T, dir string, withTests bool) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") {
			continue
		}
		if !withTests && strings.HasSuffix(name, "_test.go") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files
}

func goFilesIn(t *testing.T, dir string) []string {
	t.Helper()
	return sourceFiles(t, dir, false)
}

// importsOf returns the internal packages imported by the non-test files
// of pkgDir, by their first path element under internal/.
func importsOf(t *testing.T, pkgDir string) []string {
	t.Helper()
	seen := make(map[string]bool)
	fset := token.NewFileSet()
	for _, f := range goFilesIn(t, pkgDir) {
		node, err := parser.ParseFile(fset, f, nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parsing imports in %s: %v", f, err)
		}
		for _, imp := range node.Imports {
			rel, ok := strings.CutPrefix(strings.Trim(imp.Path.Value, `"`), internalPfx)
			if !ok {
				continue
			}
			rel, _, _ = strings.Cut(rel, "/")
			seen[rel] = true
		}
	}
	out := make([]string, 0, len(seen))
	for pkg := range seen {
		out = append(out, pkg)
	}
	sort.Strings(out)
	return out
}
