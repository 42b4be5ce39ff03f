package smr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/quatton/qsmr/pkg/qerr"
)

// Job is one planned analysis: a gene instrumented by one or more SNPs,
// tested with an eQTL dataset against every configured outcome.
type Job struct {
	Gene  string   `mapstructure:"gene" json:"gene"`
	BFile string   `mapstructure:"bfile" json:"bfile"` // LD reference panel prefix
	SNPs  []string `mapstructure:"snps" json:"snps"`
	Probe string   `mapstructure:"probe" json:"probe,omitempty"` // informational, never passed to smr
	EQTL  string   `mapstructure:"eqtl" json:"eqtl"`             // BESD eQTL summary prefix
	Label string   `mapstructure:"label" json:"label"`           // output directory name
}

// Validate checks the fields every invocation depends on.
func (j Job) Validate() error {
	var errs []error
	if strings.TrimSpace(j.Gene) == "" {
		errs = append(errs, errors.New("gene is required"))
	}
	if strings.TrimSpace(j.Label) == "" {
		errs = append(errs, errors.New("label is required"))
	}
	if strings.TrimSpace(j.BFile) == "" {
		errs = append(errs, errors.New("bfile is required"))
	}
	if strings.TrimSpace(j.EQTL) == "" {
		errs = append(errs, errors.New("eqtl is required"))
	}
	if len(j.SNPs) == 0 {
		errs = append(errs, errors.New("at least one SNP is required"))
	}
	for i, snp := range j.SNPs {
		if strings.TrimSpace(snp) == "" {
			errs = append(errs, fmt.Errorf("snp #%d is empty", i))
		}
	}
	if len(errs) > 0 {
		return qerr.New(qerr.CodeInvalidJob, fmt.Errorf("job %q: %w", j.Label, errors.Join(errs...)))
	}
	return nil
}

// Outcome is one GWAS summary-statistics dataset given as a path prefix.
type Outcome string

// Basename returns the last slash-separated element of the outcome path.
func (o Outcome) Basename() string {
	s := string(o)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Path returns the outcome as passed to --gwas-summary.
func (o Outcome) Path() string {
	return string(o)
}

// Outcomes converts plain paths into Outcomes, keeping order.
func Outcomes(paths ...string) []Outcome {
	out := make([]Outcome, len(paths))
	for i, p := range paths {
		out[i] = Outcome(p)
	}
	return out
}
