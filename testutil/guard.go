// Package testutil provides reusable testing helpers for enforcing layering
// rules between the habitatcore packages.
package testutil

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// ModulePath is the import path prefix of this module.
const ModulePath = "habitatcore"

// Package loading is swappable so the guard logic can be tested without the toolchain.
var loadPackages = func(patterns ...string) ([]*packages.Package, error) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps}
	return packages.Load(cfg, patterns...)
}

// AssertNoTransitiveDependency loads the packages matching pattern and fails
// the test if any package in their dependency graph satisfies forbidden.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	pkgs, err := loadPackages(pattern)
	if err != nil {
		t.Fatalf("load packages %s: %v", pattern, err)
	}
	failIfViolations(t, "forbidden transitive dependency", reason, transitiveViolations(pkgs, forbidden))
}

// AssertNoDirectImports fails if any package matching pattern imports a
// path that satisfies forbidden. Only direct imports are considered.
func AssertNoDirectImports(t testing.TB, pattern string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	pkgs, err := loadPackages(pattern)
	if err != nil {
		t.Fatalf("load packages %s: %v", pattern, err)
	}
	failIfViolations(t, "forbidden direct imports", reason, directViolations(pkgs, forbidden))
}

// AssertImportersConfined fails when a package outside allowedPrefix imports
// anything under guardedPrefix.
func AssertImportersConfined(t testing.TB, pattern, guardedPrefix, allowedPrefix string) {
	t.Helper()
	pkgs, err := loadPackages(pattern)
	if err != nil {
		t.Fatalf("load packages %s: %v", pattern, err)
	}
	var viols []string
	for _, pkg := range pkgs {
		if hasPathPrefix(pkg.PkgPath, allowedPrefix) || hasPathPrefix(pkg.PkgPath, guardedPrefix) {
			continue
		}
		for importPath := range pkg.Imports {
			if hasPathPrefix(importPath, guardedPrefix) {
				viols = append(viols, fmt.Sprintf("%s imports %s", pkg.PkgPath, importPath))
			}
		}
	}
	sort.Strings(viols)
	failIfViolations(t, "forbidden importers", "only "+allowedPrefix+" may wrap "+guardedPrefix, viols)
}

// InternalImportForbidden returns a predicate matching any import path containing /internal/.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// DriverImportForbidden matches database and cloud SDK imports that must stay
// out of the evaluation core.
func DriverImportForbidden(path string) bool {
	for _, prefix := range []string{"modernc.org/sqlite", "github.com/jackc/pgx", "github.com/aws/"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func transitiveViolations(pkgs []*packages.Package, forbidden func(string) bool) []string {
	seen := make(map[string]struct{})
	packages.Visit(pkgs, func(p *packages.Package) bool {
		if forbidden(p.PkgPath) {
			seen[p.PkgPath] = struct{}{}
		}
		return true
	}, nil)
	return sortedKeys(seen)
}

func directViolations(pkgs []*packages.Package, forbidden func(string) bool) []string {
	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		for importPath := range pkg.Imports {
			if forbidden(importPath) {
				seen[importPath+" (in "+pkg.PkgPath+")"] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

func hasPathPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, kind, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("%s detected (%s):\n%s", kind, reason, strings.Join(viols, "\n"))
	}
}
