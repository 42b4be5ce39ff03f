package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/quatton/qsmr/pkg/qerr"
)

const testConfig = `
smr:
  binary: /opt/smr/smr
backend: dry-run
outputRoot: ./
outcomes:
  - /gwas/formatted_jointGwasMc_TG
  - /gwas/formatted_jointGwasMc_LDL
jobs:
  - gene: HMGCR
    bfile: /ld/chr5
    snps: [rs12916]
    eqtl: /eqtl/eqtlgen
    label: HMGCR_eQTLGEN
  - gene: PCSK9
    bfile: /ld/chr1
    snps: [rs12117661]
    eqtl: /eqtl/gtex
    label: PCSK9_Blood_GTEX
`

func setupProject(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(dir)
	t.Cleanup(func() { os.Chdir(oldWd) })
	os.WriteFile("qsmr.yaml", []byte(testConfig), 0644)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--quiet"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPlanCommand(t *testing.T) {
	setupProject(t)

	out, err := execute(t, "plan", "HMGCR_eQTLGEN")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 commands, got:\n%s", out)
	}
	want := "/opt/smr/smr --bfile /ld/chr5 --gwas-summary /gwas/formatted_jointGwasMc_TG --beqtl-summary /eqtl/eqtlgen --target-snp rs12916 --peqtl-smr 1 --out ./HMGCR_eQTLGEN/HMGCR_rs12916_formatted_jointGwasMc_TG_peqtl_1_SMR --thread-num 20 --diff-freq 1"
	if lines[1] != want {
		t.Errorf("got  %s\nwant %s", lines[1], want)
	}
	if _, err := os.Stat("HMGCR_eQTLGEN"); !os.IsNotExist(err) {
		t.Error("plan must not create output directories")
	}
}

func TestRunCommandDryRun(t *testing.T) {
	setupProject(t)

	out, err := execute(t, "run")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if strings.Count(out, "--target-snp") != 4 {
		t.Errorf("expected 4 dry-run command lines, got:\n%s", out)
	}
	for _, dir := range []string{"HMGCR_eQTLGEN", "PCSK9_Blood_GTEX"} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected %s to be created", dir)
		}
	}

	out, err = execute(t, "reports", "list")
	if err != nil {
		t.Fatalf("reports list failed: %v", err)
	}
	if !strings.Contains(out, "HMGCR_eQTLGEN") || !strings.Contains(out, "PCSK9_Blood_GTEX") {
		t.Errorf("expected both reports listed, got:\n%s", out)
	}

	_, err = execute(t, "run", "HMGCR_eQTLGEN")
	if !qerr.IsCode(err, qerr.CodeOutputDirExists) {
		t.Fatalf("expected output_dir_exists on rerun, got %v", err)
	}
	if code := exitCode(err); code != exitFatal {
		t.Errorf("expected exit code %d, got %d", exitFatal, code)
	}
}

func TestRunCommandUnknownLabel(t *testing.T) {
	setupProject(t)

	_, err := execute(t, "run", "NOPE")
	if !qerr.IsCode(err, qerr.CodeConfig) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestReportsFetchWithoutArtifacts(t *testing.T) {
	setupProject(t)

	_, err := execute(t, "reports", "fetch", "0199")
	if !qerr.IsCode(err, qerr.CodeConfig) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{errInvocationsFailed, exitInvocationsFailed},
		{fmt.Errorf("wrapped: %w", errInvocationsFailed), exitInvocationsFailed},
		{qerr.Newf(qerr.CodeLabelLocked, "locked"), exitFatal},
		{errors.New("boom"), exitFatal},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
