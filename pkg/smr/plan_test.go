package smr

import (
	"reflect"
	"strings"
	"testing"

	"github.com/quatton/qsmr/pkg/qerr"
)

func hmgcrJob() Job {
	return Job{
		Gene:  "HMGCR",
		BFile: "/ref/ukbEURu_imp_chr5_v3_impQC_10k_mac1",
		SNPs:  []string{"rs12916"},
		Probe: "ENSG00000113161",
		EQTL:  "/eqtl/eQTLGen_besd-dense",
		Label: "HMGCR_eQTLGEN",
	}
}

func TestPlan_SingleInvocation(t *testing.T) {
	p := Planner{
		Binary:   "/opt/smr/smr_Linux",
		Root:     ".",
		Params:   DefaultParams(),
		Outcomes: Outcomes("~/data/inflam_ahola_olli_2016/formatted/formatted_IL6_ahola_olli"),
	}

	invs, err := p.Plan(hmgcrJob())
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(invs) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(invs))
	}

	wantPrefix := "./HMGCR_eQTLGEN/HMGCR_rs12916_formatted_IL6_ahola_olli_peqtl_1_SMR"
	if invs[0].OutPrefix != wantPrefix {
		t.Errorf("expected prefix %s, got %s", wantPrefix, invs[0].OutPrefix)
	}

	wantArgs := []string{
		"/opt/smr/smr_Linux",
		"--bfile", "/ref/ukbEURu_imp_chr5_v3_impQC_10k_mac1",
		"--gwas-summary", "~/data/inflam_ahola_olli_2016/formatted/formatted_IL6_ahola_olli",
		"--beqtl-summary", "/eqtl/eQTLGen_besd-dense",
		"--target-snp", "rs12916",
		"--peqtl-smr", "1",
		"--out", wantPrefix,
		"--thread-num", "20",
		"--diff-freq", "1",
	}
	if !reflect.DeepEqual(invs[0].Args, wantArgs) {
		t.Errorf("unexpected argv:\n got %v\nwant %v", invs[0].Args, wantArgs)
	}

	if !strings.Contains(invs[0].CommandLine(), "--peqtl-smr 1 --out "+wantPrefix+" --thread-num 20 --diff-freq 1") {
		t.Errorf("command line lost flag order: %s", invs[0].CommandLine())
	}
	if invs[0].Binary() != "/opt/smr/smr_Linux" {
		t.Errorf("unexpected binary %s", invs[0].Binary())
	}
}

func TestPlan_CountAndOrder(t *testing.T) {
	job := hmgcrJob()
	job.SNPs = []string{"rs1", "rs2", "rs3"}
	p := Planner{
		Binary:   "smr",
		Params:   DefaultParams(),
		Outcomes: Outcomes("/a/out_A", "/b/out_B"),
	}

	invs, err := p.Plan(job)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(invs) != len(p.Outcomes)*len(job.SNPs) {
		t.Fatalf("expected %d invocations, got %d", len(p.Outcomes)*len(job.SNPs), len(invs))
	}

	var order []string
	seen := make(map[string]bool)
	for _, inv := range invs {
		order = append(order, inv.Outcome.Basename()+"/"+inv.SNP)
		if seen[inv.OutPrefix] {
			t.Errorf("duplicate prefix %s", inv.OutPrefix)
		}
		seen[inv.OutPrefix] = true
	}
	want := []string{"out_A/rs1", "out_A/rs2", "out_A/rs3", "out_B/rs1", "out_B/rs2", "out_B/rs3"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("expected outcome-major order %v, got %v", want, order)
	}
}

func TestOutputPrefix_PureAndDistinct(t *testing.T) {
	job := hmgcrJob()
	out := Outcome("/x/formatted_TG")

	a := OutputPrefix(".", job, "rs1", out, 1)
	b := OutputPrefix(".", job, "rs1", out, 1)
	if a != b {
		t.Fatalf("same inputs gave different prefixes: %s vs %s", a, b)
	}

	variants := map[string]string{}
	variants["snp"] = OutputPrefix(".", job, "rs2", out, 1)
	variants["outcome"] = OutputPrefix(".", job, "rs1", Outcome("/x/formatted_LDL"), 1)
	other := job
	other.Gene = "PCSK9"
	variants["gene"] = OutputPrefix(".", other, "rs1", out, 1)
	other = job
	other.Label = "HMGCR_Brain_psychENCODE"
	variants["label"] = OutputPrefix(".", other, "rs1", out, 1)

	for field, v := range variants {
		if v == a {
			t.Errorf("changing %s did not change the prefix", field)
		}
	}
}

func TestOutputDir(t *testing.T) {
	cases := map[string]string{
		"":        "./L/",
		".":       "./L/",
		"/data/":  "/data/L/",
		"results": "results/L/",
	}
	for root, want := range cases {
		if got := OutputDir(root, "L"); got != want {
			t.Errorf("OutputDir(%q) = %q, want %q", root, got, want)
		}
	}
}

func TestOutputPrefix_ThresholdInName(t *testing.T) {
	got := OutputPrefix(".", hmgcrJob(), "rs12916", Outcome("o"), 5e-8)
	if !strings.HasSuffix(got, "_peqtl_5e-08_SMR") {
		t.Errorf("unexpected suffix in %s", got)
	}
}

func TestPlan_InvalidJob(t *testing.T) {
	p := Planner{Binary: "smr", Params: DefaultParams(), Outcomes: Outcomes("/o")}

	cases := map[string]func(*Job){
		"no gene":   func(j *Job) { j.Gene = "" },
		"no label":  func(j *Job) { j.Label = " " },
		"no snps":   func(j *Job) { j.SNPs = nil },
		"empty snp": func(j *Job) { j.SNPs = []string{"rs1", ""} },
		"no bfile":  func(j *Job) { j.BFile = "" },
		"no eqtl":   func(j *Job) { j.EQTL = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			job := hmgcrJob()
			mutate(&job)
			_, err := p.Plan(job)
			if !qerr.IsCode(err, qerr.CodeInvalidJob) {
				t.Errorf("expected %s, got %v", qerr.CodeInvalidJob, err)
			}
		})
	}
}

func TestPlan_BadConfig(t *testing.T) {
	_, err := Planner{Params: DefaultParams()}.Plan(hmgcrJob())
	if !qerr.IsCode(err, qerr.CodeConfig) {
		t.Errorf("expected config error for missing binary, got %v", err)
	}

	_, err = Planner{Binary: "smr", Params: Params{PeqtlSMR: 1, ThreadNum: 0, DiffFreq: 1}}.Plan(hmgcrJob())
	if !qerr.IsCode(err, qerr.CodeConfig) {
		t.Errorf("expected config error for zero threads, got %v", err)
	}
}

func TestOutcome_Basename(t *testing.T) {
	if got := Outcome("~/data/GLGC_lipids_gwas/formatted_jointGwasMc_HDL").Basename(); got != "formatted_jointGwasMc_HDL" {
		t.Errorf("unexpected basename %s", got)
	}
	if got := Outcome("plain").Basename(); got != "plain" {
		t.Errorf("unexpected basename %s", got)
	}
}
