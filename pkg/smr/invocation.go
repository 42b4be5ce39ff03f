package smr

import (
	"strconv"
	"strings"
)

// Invocation is a single smr execution: one job, one SNP, one outcome.
type Invocation struct {
	Job       Job
	SNP       string
	Outcome   Outcome
	OutPrefix string
	Args      []string // argv including the binary at Args[0]
}

// OutputDir returns "<root>/<label>/". The trailing slash and a leading "./"
// are kept so prefixes read exactly like the historical output layout.
func OutputDir(root, label string) string {
	if root == "" {
		root = "."
	}
	return strings.TrimRight(root, "/") + "/" + label + "/"
}

// OutputPrefix names the files smr writes for one invocation:
// <root>/<label>/<gene>_<snp>_<outcome basename>_peqtl_<p>_SMR
func OutputPrefix(root string, job Job, snp string, outcome Outcome, peqtl float64) string {
	var b strings.Builder
	b.WriteString(OutputDir(root, job.Label))
	b.WriteString(job.Gene)
	b.WriteByte('_')
	b.WriteString(snp)
	b.WriteByte('_')
	b.WriteString(outcome.Basename())
	b.WriteString("_peqtl_")
	b.WriteString(formatNumber(peqtl))
	b.WriteString("_SMR")
	return b.String()
}

// BuildArgs assembles the smr argv. Flag order is fixed.
func BuildArgs(binary string, job Job, snp string, outcome Outcome, params Params, outPrefix string) []string {
	return []string{
		binary,
		"--bfile", job.BFile,
		"--gwas-summary", outcome.Path(),
		"--beqtl-summary", job.EQTL,
		"--target-snp", snp,
		"--peqtl-smr", formatNumber(params.PeqtlSMR),
		"--out", outPrefix,
		"--thread-num", strconv.Itoa(params.ThreadNum),
		"--diff-freq", formatNumber(params.DiffFreq),
	}
}

// Binary returns the executable path.
func (inv Invocation) Binary() string {
	if len(inv.Args) == 0 {
		return ""
	}
	return inv.Args[0]
}

// CommandLine renders the argv space-separated, for logs and dry runs.
func (inv Invocation) CommandLine() string {
	return strings.Join(inv.Args, " ")
}
