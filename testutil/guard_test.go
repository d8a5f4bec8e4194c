package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		in            string
		infra, driver bool
	}{
		{"snpbench/internal/infra/persistence/sqlite", true, false},
		{"snpbench/internal/infra/blob/s3", true, false},
		{"snpbench/internal/store", false, false},
		{"github.com/jackc/pgx/v5/stdlib", false, true},
		{"modernc.org/sqlite", false, true},
		{"database/sql/driver", false, true},
		{"database/sqlx", false, false},
		{"encoding/csv", false, false},
	}
	for _, c := range cases {
		if got := InfraImportForbidden(c.in); got != c.infra {
			t.Errorf("InfraImportForbidden(%q)=%v want %v", c.in, got, c.infra)
		}
		if got := DriverImportForbidden(c.in); got != c.driver {
			t.Errorf("DriverImportForbidden(%q)=%v want %v", c.in, got, c.driver)
		}
	}
}

// Only the package's own non-test files are scanned.
func TestAssertNoDirectImportsIgnoresTestsAndSubdirs(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("x.go", "package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	write("x_test.go", "package tmp\nimport \"modernc.org/sqlite\"\n")
	write("sub/y.go", "package sub\nimport \"github.com/jackc/pgx/v5\"\n")
	write("notes.txt", "import \"database/sql\"")
	AssertNoDirectImports(t, dir, DriverImportForbidden, "drivers")
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	src := "package tmp\nimport _ \"snpbench/internal/infra/persistence/sqlite\"\n"
	if err := os.WriteFile(filepath.Join(dir, "x.go"), []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	viols, err := directImportViolations(dir, InfraImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.Contains(viols[0], "x.go") {
		t.Fatalf("unexpected violations %v", viols)
	}
	rec := &recordingFatal{}
	report(rec, "forbidden direct imports", "infra", viols)
	if !strings.Contains(rec.msg, "forbidden direct imports detected (infra)") {
		t.Fatalf("expected failure message, got %q", rec.msg)
	}

	if err := os.WriteFile(filepath.Join(dir, "bad.go"), []byte("not go"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := directImportViolations(dir, InfraImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := directImportViolations(filepath.Join(dir, "missing"), InfraImportForbidden); err == nil {
		t.Fatalf("expected read error")
	}
}

// graph builds root -> mid -> leaf where leaf is a driver.
func graph() []*packages.Package {
	leaf := &packages.Package{PkgPath: "modernc.org/sqlite", Imports: map[string]*packages.Package{}}
	mid := &packages.Package{PkgPath: "snpbench/internal/infra/persistence/sqlite", Imports: map[string]*packages.Package{"modernc.org/sqlite": leaf}}
	root := &packages.Package{PkgPath: "snpbench/cmd/snpbench", Imports: map[string]*packages.Package{
		"fmt":          {PkgPath: "fmt", Imports: map[string]*packages.Package{}},
		mid.PkgPath:    mid,
		"snpbench/x/y": {PkgPath: "snpbench/x/y", Imports: map[string]*packages.Package{"modernc.org/sqlite": leaf}},
	}}
	return []*packages.Package{root}
}

func TestTransitiveViolationsVisitsEachPackageOnce(t *testing.T) {
	viols := transitiveViolations(graph(), DriverImportForbidden)
	if len(viols) != 1 || viols[0] != "modernc.org/sqlite" {
		t.Fatalf("unexpected violations %v", viols)
	}
}

func TestImporterViolations(t *testing.T) {
	target := "snpbench/internal/infra/persistence"
	allowed := func(p string) bool { return p == "snpbench/cmd/snpbench" }
	pkgs := graph()
	pkgs = append(pkgs, &packages.Package{PkgPath: "snpbench/internal/bench", Imports: map[string]*packages.Package{
		target + "/sqlite": nil,
		"context":          nil,
	}}, &packages.Package{PkgPath: target + "/sqlite", Imports: map[string]*packages.Package{target + "/postgres": nil}})
	viols := importerViolations(pkgs, target, allowed)
	if len(viols) != 1 || viols[0] != "snpbench/internal/bench: "+target+"/sqlite" {
		t.Fatalf("unexpected violations %v", viols)
	}
}

func TestLoadFailuresAreFatal(t *testing.T) {
	restore := loadPackages
	t.Cleanup(func() { loadPackages = restore })
	loadPackages = func(*packages.Config, ...string) ([]*packages.Package, error) {
		return nil, errors.New("no go toolchain")
	}
	rec := &recordingTB{}
	func() {
		defer func() { _ = recover() }()
		AssertNoTransitiveDependency(rec, "./...", DriverImportForbidden, "drivers")
	}()
	if !strings.Contains(rec.msg, "no go toolchain") {
		t.Fatalf("expected load failure to be reported, got %q", rec.msg)
	}
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) {
	r.msg = strings.TrimSpace(format)
	for _, a := range args {
		if s, ok := a.(string); ok {
			r.msg = strings.Replace(r.msg, "%s", s, 1)
		}
	}
}

// recordingTB captures Fatalf and stops the helper the way testing does.
type recordingTB struct {
	testing.TB
	msg string
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Fatalf(format string, args ...any) {
	r.msg = strings.TrimSpace(format)
	for _, a := range args {
		if e, ok := a.(error); ok {
			r.msg += " " + e.Error()
		}
	}
	panic("fatal")
}
