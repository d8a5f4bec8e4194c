// Package testutil provides helpers for enforcing package layering in tests:
// the benchmark core stays engine-agnostic, parsing stays free of storage,
// and only the blob facade constructs blob drivers.
package testutil

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// InfraImportForbidden matches import paths of concrete infrastructure
// packages (database engines, blob drivers).
func InfraImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/infra/")
}

// DriverImportForbidden matches database driver modules.
func DriverImportForbidden(path string) bool {
	for _, prefix := range []string{"github.com/jackc/pgx", "modernc.org/sqlite", "database/sql"} {
		if Within(path, prefix) {
			return true
		}
	}
	return false
}

// Within reports whether path is prefix or one of its subpackages.
func Within(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// AssertNoDirectImports parses the non-test .go files directly in dir and
// fails if any import satisfies forbidden. Build tags are not evaluated.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	report(t, "forbidden direct imports", reason, viols)
}

// AssertNoTransitiveDependency loads pattern with its full dependency graph
// and fails if any reachable package satisfies forbidden.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	pkgs, err := loadPackages(&packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps}, pattern)
	if err != nil {
		t.Fatalf("load %s: %v", pattern, err)
	}
	report(t, "forbidden transitive dependency", reason, transitiveViolations(pkgs, forbidden))
}

// AssertImportedOnlyBy loads pattern (tests included) and fails if a package
// outside allowed imports target or one of its subpackages. Packages under
// target itself are exempt.
func AssertImportedOnlyBy(t testing.TB, pattern, target string, allowed func(pkgPath string) bool) {
	t.Helper()
	pkgs, err := loadPackages(&packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}, pattern)
	if err != nil {
		t.Fatalf("load %s: %v", pattern, err)
	}
	report(t, "forbidden imports of "+target, "use the facade instead", importerViolations(pkgs, target, allowed))
}

var loadPackages = packages.Load

func transitiveViolations(roots []*packages.Package, forbidden func(string) bool) []string {
	var viols []string
	packages.Visit(roots, func(p *packages.Package) bool {
		if forbidden(p.PkgPath) {
			viols = append(viols, p.PkgPath)
		}
		return true
	}, nil)
	slices.Sort(viols)
	return viols
}

func importerViolations(pkgs []*packages.Package, target string, allowed func(string) bool) []string {
	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		if Within(pkg.PkgPath, target) || allowed(pkg.PkgPath) {
			continue
		}
		for imp := range pkg.Imports {
			if Within(imp, target) {
				seen[pkg.PkgPath+": "+imp] = struct{}{}
			}
		}
	}
	viols := make([]string, 0, len(seen))
	for v := range seen {
		viols = append(viols, v)
	}
	slices.Sort(viols)
	return viols
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range f.Imports {
			if ip := strings.Trim(imp.Path.Value, `"`); forbidden(ip) {
				viols = append(viols, fmt.Sprintf("%s (in %s)", ip, name))
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func report(t fatalLogger, what, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("%s detected (%s):\n%s", what, reason, strings.Join(viols, "\n"))
	}
}
