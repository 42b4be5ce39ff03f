package smr

import (
	"errors"

	"github.com/quatton/qsmr/pkg/qerr"
)

// Planner expands jobs into invocations. It holds the run-wide settings so
// callers only pass the job.
type Planner struct {
	Binary   string
	Root     string
	Params   Params
	Outcomes []Outcome
}

// Plan returns every invocation of job, outcome-major and SNP-minor.
// The result has len(p.Outcomes) * len(job.SNPs) entries.
func (p Planner) Plan(job Job) ([]Invocation, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if p.Binary == "" {
		return nil, qerr.New(qerr.CodeConfig, errors.New("smr binary is not configured"))
	}
	if err := p.Params.Validate(); err != nil {
		return nil, qerr.New(qerr.CodeConfig, err)
	}

	invocations := make([]Invocation, 0, len(p.Outcomes)*len(job.SNPs))
	for _, outcome := range p.Outcomes {
		for _, snp := range job.SNPs {
			prefix := OutputPrefix(p.Root, job, snp, outcome, p.Params.PeqtlSMR)
			invocations = append(invocations, Invocation{
				Job:       job,
				SNP:       snp,
				Outcome:   outcome,
				OutPrefix: prefix,
				Args:      BuildArgs(p.Binary, job, snp, outcome, p.Params, prefix),
			})
		}
	}
	return invocations, nil
}

// Plan is Planner.Plan without a Planner value.
func Plan(job Job, outcomes []Outcome, params Params, binary, root string) ([]Invocation, error) {
	return Planner{Binary: binary, Root: root, Params: params, Outcomes: outcomes}.Plan(job)
}
