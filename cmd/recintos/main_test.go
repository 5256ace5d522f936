package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"habitatcore/internal/catalog"
	"habitatcore/internal/core"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := cli(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func decodeReport(t *testing.T, out string) core.Report {
	t.Helper()
	var report core.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report %q: %v", out, err)
	}
	return report
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCLIEvaluatesFlags(t *testing.T) {
	code, out, _ := runCLI(t, "-animal", "MACACO", "-quantidade", "2")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	report := decodeReport(t, out)
	want := []string{
		"Recinto 1 (espaço livre: 5 total: 10)",
		"Recinto 2 (espaço livre: 3 total: 5)",
		"Recinto 3 (espaço livre: 2 total: 7)",
	}
	if strings.Join(report.RecintosViaveis, "|") != strings.Join(want, "|") || report.Erro != "" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestCLIReportsErrors(t *testing.T) {
	cases := []struct {
		args []string
		erro string
	}{
		{[]string{"-animal", "UNICORNIO"}, "Animal inválido"},
		{[]string{"-animal", "MACACO", "-quantidade", "0"}, "Quantidade inválida"},
		{[]string{"-animal", "MACACO", "-quantidade", "1.5"}, "Quantidade inválida"},
		{[]string{"-animal", "MACACO", "-quantidade", "10"}, "Não há recinto viável"},
	}
	for _, tc := range cases {
		code, out, _ := runCLI(t, tc.args...)
		if code != exitFailed {
			t.Fatalf("%v: expected exit 1, got %d", tc.args, code)
		}
		if report := decodeReport(t, out); report.Erro != tc.erro || report.RecintosViaveis != nil {
			t.Fatalf("%v: unexpected report %+v", tc.args, report)
		}
	}
}

func TestCLISuggestsSpecies(t *testing.T) {
	code, _, stderr := runCLI(t, "-animal", "leão")
	if code != exitFailed {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "did you mean LEAO?") {
		t.Fatalf("expected suggestion, got %q", stderr)
	}
}

func TestCLIRequestFileAndStdin(t *testing.T) {
	path := writeFile(t, "pedido.json", `{"animal":"CROCODILO","quantidade":1}`)
	code, out, _ := runCLI(t, "-request", path)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if got := decodeReport(t, out).RecintosViaveis; len(got) != 1 || got[0] != "Recinto 4 (espaço livre: 5 total: 8)" {
		t.Fatalf("unexpected report %v", got)
	}

	prev := stdin
	stdin = strings.NewReader(`{"animal":"MACACO","quantidade":2.5}`)
	t.Cleanup(func() { stdin = prev })
	code, out, _ = runCLI(t, "-request", "-")
	if code != exitFailed || decodeReport(t, out).Erro != "Quantidade inválida" {
		t.Fatalf("expected invalid quantity from stdin, got %d %s", code, out)
	}

	code, out, _ = runCLI(t, "-request", filepath.Join(t.TempDir(), "missing.json"))
	if code != exitFailed || !strings.Contains(decodeReport(t, out).Erro, "open request") {
		t.Fatalf("expected open error, got %d %s", code, out)
	}
}

func TestCLIExplain(t *testing.T) {
	code, out, _ := runCLI(t, "-animal", "HIPOPOTAMO", "-quantidade", "2", "-explain")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	var lines []explainLine
	if err := json.Unmarshal([]byte(out), &lines); err != nil {
		t.Fatalf("decode explain output: %v", err)
	}
	if len(lines) != 5 {
		t.Fatalf("expected 5 enclosures, got %d", len(lines))
	}
	if !lines[3].Admissible || lines[2].Admissible || lines[2].Violations[0].Rule != core.RuleCapacity {
		t.Fatalf("unexpected explain output %+v", lines)
	}

	code, out, _ = runCLI(t, "-animal", "UNICORNIO", "-explain")
	if code != exitFailed || decodeReport(t, out).Erro != "Animal inválido" {
		t.Fatalf("expected invalid species, got %d %s", code, out)
	}
}

func TestCLIMetrics(t *testing.T) {
	code, _, stderr := runCLI(t, "-animal", "LEAO", "-metrics")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stderr, `habitatcore_evaluator_calls_total{operation="evaluate",outcome="viable"} 1`) {
		t.Fatalf("expected metrics exposition, got %q", stderr)
	}
}

func TestCLIUsageErrors(t *testing.T) {
	if code, _, _ := runCLI(t); code != exitStartup {
		t.Fatalf("expected exit 2 without arguments, got %d", code)
	}
	if code, _, _ := runCLI(t, "-nope"); code != exitStartup {
		t.Fatalf("expected exit 2 for unknown flag, got %d", code)
	}
	t.Setenv("HABITATCORE_LOG_LEVEL", "loud")
	if code, _, _ := runCLI(t, "-animal", "LEAO"); code != exitStartup {
		t.Fatalf("expected exit 2 for bad log level, got %d", code)
	}
	t.Setenv("HABITATCORE_LOG_LEVEL", "warn")
	t.Setenv("HABITATCORE_CATALOG_SOURCE", "carrier-pigeon")
	if code, _, _ := runCLI(t, "-animal", "LEAO"); code != exitStartup {
		t.Fatalf("expected exit 2 for unknown source, got %d", code)
	}
	t.Setenv("HABITATCORE_CATALOG_SOURCE", sourceBuiltin)
	if code, _, _ := runCLI(t, "-seed"); code != exitStartup {
		t.Fatalf("expected exit 2 when seeding the builtin source, got %d", code)
	}
}

func TestCLICatalogFile(t *testing.T) {
	raw, err := catalog.Marshal(catalog.Reference())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := writeFile(t, "catalog.yaml", string(raw))
	if code, _, _ := runCLI(t, "-catalog", path, "-animal", "GAZELA"); code != exitOK {
		t.Fatalf("expected exit 0 with catalog file, got %d", code)
	}
	bad := writeFile(t, "bad.yaml", "enclosures: []\nzebras: 1\n")
	if code, _, _ := runCLI(t, "-catalog", bad, "-animal", "GAZELA"); code != exitStartup {
		t.Fatalf("expected exit 2 for invalid catalog file, got %d", code)
	}
}

func TestCLISeedAndLoadSQLite(t *testing.T) {
	t.Setenv("HABITATCORE_CATALOG_SOURCE", sourceSQLite)
	t.Setenv("HABITATCORE_SQLITE_PATH", filepath.Join(t.TempDir(), "reference.db"))
	if code, _, stderr := runCLI(t, "-animal", "LEAO"); code != exitStartup {
		t.Fatalf("expected exit 2 before seeding, got %d (%s)", code, stderr)
	}
	if code, _, stderr := runCLI(t, "-seed"); code != exitOK {
		t.Fatalf("seed: exit %d (%s)", code, stderr)
	}
	code, out, _ := runCLI(t, "-animal", "LEAO")
	if code != exitOK || decodeReport(t, out).RecintosViaveis[0] != "Recinto 5 (espaço livre: 3 total: 9)" {
		t.Fatalf("unexpected sqlite-backed result %d %s", code, out)
	}
}

func TestCLISeedAndLoadBlob(t *testing.T) {
	t.Setenv("HABITATCORE_CATALOG_SOURCE", sourceBlob)
	t.Setenv("HABITATCORE_BLOB_DRIVER", "fs")
	t.Setenv("HABITATCORE_BLOB_FS_ROOT", t.TempDir())
	if code, _, stderr := runCLI(t, "-seed"); code != exitOK {
		t.Fatalf("seed: exit %d (%s)", code, stderr)
	}
	if code, _, _ := runCLI(t, "-seed"); code != exitStartup {
		t.Fatalf("expected second seed to hit the write-once key, got %d", code)
	}
	code, out, _ := runCLI(t, "-animal", "MACACO", "-quantidade", "10")
	if code != exitFailed || decodeReport(t, out).Erro != "Não há recinto viável" {
		t.Fatalf("unexpected blob-backed result %d %s", code, out)
	}

	t.Setenv("HABITATCORE_CATALOG_KEY", "reference/2027.yaml")
	code, _, stderr := runCLI(t, "-animal", "MACACO", "-quantidade", "1")
	if code != exitStartup || !strings.Contains(stderr, "reference/catalog.yaml") {
		t.Fatalf("expected missing key to list published revisions, got %d %s", code, stderr)
	}

	t.Setenv("HABITATCORE_BLOB_DRIVER", "ftp")
	code, _, stderr = runCLI(t, "-animal", "MACACO", "-quantidade", "1")
	if code != exitStartup || !strings.Contains(stderr, "unknown blob driver") {
		t.Fatalf("expected blob driver error, got %d %s", code, stderr)
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	var got int
	prevExit, prevArgs := exitFunc, os.Args
	exitFunc = func(code int) { got = code }
	os.Args = []string{"recintos"}
	t.Cleanup(func() { exitFunc, os.Args = prevExit, prevArgs })
	main()
	if got != exitStartup {
		t.Fatalf("expected exit code 2, got %d", got)
	}
}
