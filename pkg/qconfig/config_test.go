package qconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quatton/qsmr/pkg/batch"
	"github.com/quatton/qsmr/pkg/qerr"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tempDir)
	t.Cleanup(func() { os.Chdir(oldWd) })
	return tempDir
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdirTemp(t)
	home, _ := os.UserHomeDir()

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.SMR.Binary != filepath.Join(home, "utils/SMR/smr_Linux_YW") {
		t.Errorf("Expected expanded default binary, got %s", cfg.SMR.Binary)
	}
	if cfg.SMR.PeqtlSMR != 1 || cfg.SMR.ThreadNum != 20 || cfg.SMR.DiffFreq != 1 {
		t.Errorf("Unexpected default params %+v", cfg.SMR.Params)
	}
	if cfg.OutputRoot != "./" {
		t.Errorf("Expected outputRoot ./, got %s", cfg.OutputRoot)
	}
	if cfg.Backend != "local" || cfg.Policy.OnFailure != batch.PolicyIgnore {
		t.Errorf("Unexpected backend/policy %s/%s", cfg.Backend, cfg.Policy.OnFailure)
	}
	if len(cfg.Outcomes) != 35 {
		t.Errorf("Expected 35 outcomes, got %d", len(cfg.Outcomes))
	}
	if !strings.HasSuffix(cfg.Outcomes[27], "formatted_jointGwasMc_TG") {
		t.Errorf("Unexpected outcome order: %s", cfg.Outcomes[27])
	}

	if len(cfg.Jobs) != 5 {
		t.Fatalf("Expected 5 jobs, got %d", len(cfg.Jobs))
	}
	first := cfg.Jobs[0]
	if first.Gene != "HMGCR" || first.Label != "HMGCR_eQTLGEN" || len(first.SNPs) != 1 || first.SNPs[0] != "rs12916" {
		t.Errorf("Unexpected first job %+v", first)
	}
	if strings.HasPrefix(first.BFile, "~") {
		t.Errorf("Expected bfile to be expanded, got %s", first.BFile)
	}
	if cfg.Jobs[4].Label != "PCSK9_Blood_GTEX" {
		t.Errorf("Unexpected last job %+v", cfg.Jobs[4])
	}
	if cfg.Reports.Backend != ReportsFile || cfg.Reports.Dir != ".qsmr/reports" {
		t.Errorf("Unexpected reports config %+v", cfg.Reports)
	}
}

func TestLoadConfig_ProjectConfig(t *testing.T) {
	chdirTemp(t)

	projectConfig := `
smr:
  binary: /opt/smr/smr
  threadNum: 8
backend: dry-run
policy:
  onFailure: retry
  retries: 2
  timeout: 30m
outcomes:
  - /gwas/formatted_TG
jobs:
  - gene: PCSK9
    bfile: /ld/chr1
    snps: [rs11591147, rs12117661]
    eqtl: /eqtl/gtex
    label: PCSK9_test
`
	os.WriteFile("qsmr.yaml", []byte(projectConfig), 0644)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.SMR.Binary != "/opt/smr/smr" || cfg.SMR.ThreadNum != 8 {
		t.Errorf("Unexpected smr config %+v", cfg.SMR)
	}
	if cfg.SMR.PeqtlSMR != 1 {
		t.Errorf("Expected default peqtl to survive partial override, got %v", cfg.SMR.PeqtlSMR)
	}
	if cfg.Policy.OnFailure != batch.PolicyRetry || cfg.Policy.Retries != 2 || cfg.Policy.Timeout != 30*time.Minute {
		t.Errorf("Unexpected policy %+v", cfg.Policy)
	}
	if len(cfg.Outcomes) != 1 || len(cfg.Jobs) != 1 || len(cfg.Jobs[0].SNPs) != 2 {
		t.Errorf("Expected project outcomes and jobs to replace defaults")
	}
	if !strings.HasSuffix(cfg.ConfigFileUsed(), "qsmr.yaml") {
		t.Errorf("Unexpected config file %s", cfg.ConfigFileUsed())
	}
}

func TestLoadConfig_LocalOverride(t *testing.T) {
	chdirTemp(t)

	os.WriteFile("qsmr.yaml", []byte("backend: docker\noutputRoot: /results\n"), 0644)
	os.MkdirAll(ConfigRoot, 0755)
	os.WriteFile(filepath.Join(ConfigRoot, "config.yaml"), []byte("backend: dry-run\n"), 0644)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Backend != "dry-run" {
		t.Errorf("Expected backend dry-run (from local override), got %s", cfg.Backend)
	}
	if cfg.OutputRoot != "/results" {
		t.Errorf("Expected outputRoot from project config, got %s", cfg.OutputRoot)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("QSMR_BACKEND", "k8s")
	t.Setenv("QSMR_SMR_THREADNUM", "4")
	t.Setenv("QSMR_K8S_NAMESPACE", "genomics")
	t.Setenv("QSMR_K8S_DATACLAIM", "smr-data")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Backend != "k8s" {
		t.Errorf("Expected backend k8s from env, got %s", cfg.Backend)
	}
	if cfg.SMR.ThreadNum != 4 {
		t.Errorf("Expected threadNum 4 from env, got %d", cfg.SMR.ThreadNum)
	}
	if cfg.K8s.Namespace != "genomics" {
		t.Errorf("Expected namespace from env, got %s", cfg.K8s.Namespace)
	}
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	chdirTemp(t)
	_, err := LoadConfig("does-not-exist.yaml")
	if !qerr.IsCode(err, qerr.CodeConfig) {
		t.Errorf("Expected config error, got %v", err)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"backend", "backend: slurm\n", "unknown backend"},
		{"policy", "policy:\n  onFailure: sometimes\n", "unknown failure policy"},
		{"threads", "smr:\n  threadNum: 0\n", "thread"},
		{"reports", "reports:\n  backend: s3\n", "unknown reports backend"},
		{"k8s without claim", "backend: k8s\n", "k8s.dataClaim is required"},
		{"k8s dir outside claim", "backend: k8s\nworkingDir: /srv/smr\nk8s:\n  dataClaim: smr-data\n", "outside k8s.dataPath"},
		{"duplicate labels", "jobs:\n  - {gene: A, bfile: b, snps: [rs1], eqtl: e, label: X}\n  - {gene: B, bfile: b, snps: [rs2], eqtl: e, label: X}\n", "duplicate job label"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			os.WriteFile("qsmr.yaml", []byte(tt.yaml), 0644)
			_, err := LoadConfig("")
			if !qerr.IsCode(err, qerr.CodeConfig) {
				t.Fatalf("Expected config error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected %q in %v", tt.want, err)
			}
		})
	}
}

func TestSelectJobs(t *testing.T) {
	chdirTemp(t)
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	all, _ := cfg.SelectJobs()
	if len(all) != 5 {
		t.Errorf("Expected all 5 jobs, got %d", len(all))
	}

	picked, err := cfg.SelectJobs("PCSK9_Blood_GTEX", "HMGCR_eQTLGEN")
	if err != nil {
		t.Fatalf("SelectJobs failed: %v", err)
	}
	if len(picked) != 2 || picked[0].Gene != "PCSK9" || picked[1].Gene != "HMGCR" {
		t.Errorf("Unexpected selection %+v", picked)
	}

	if _, err := cfg.SelectJobs("nope"); !qerr.IsCode(err, qerr.CodeConfig) {
		t.Errorf("Expected config error for unknown label, got %v", err)
	}
}

func TestPlanner(t *testing.T) {
	chdirTemp(t)
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	invocations, err := cfg.Planner().Plan(cfg.Jobs[0])
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(invocations) != 35 {
		t.Errorf("Expected 35 invocations, got %d", len(invocations))
	}
	want := "./HMGCR_eQTLGEN/HMGCR_rs12916_formatted_baso_Vuckovic_2020_N_peqtl_1_SMR"
	if invocations[0].OutPrefix != want {
		t.Errorf("Expected %s, got %s", want, invocations[0].OutPrefix)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := map[string]string{
		"~":           home,
		"~/data/x":    filepath.Join(home, "data/x"),
		"/abs/path":   "/abs/path",
		"rel/path":    "rel/path",
		"~other/path": "~other/path",
		"":            "",
	}
	for in, want := range tests {
		got, err := ExpandHome(in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ExpandHome(%q) = %q, want %q", in, got, want)
		}
	}
}
