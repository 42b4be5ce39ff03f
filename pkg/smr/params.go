package smr

import (
	"fmt"
	"strconv"
)

const (
	DefaultPeqtlSMR  = 1.0
	DefaultThreadNum = 20
	DefaultDiffFreq  = 1.0
)

// Params are the fixed numeric flags shared by every invocation of a run.
type Params struct {
	PeqtlSMR  float64 `mapstructure:"peqtlSmr" json:"peqtl_smr"`
	ThreadNum int     `mapstructure:"threadNum" json:"thread_num"`
	DiffFreq  float64 `mapstructure:"diffFreq" json:"diff_freq"`
}

// DefaultParams returns --peqtl-smr 1, --thread-num 20, --diff-freq 1.
func DefaultParams() Params {
	return Params{
		PeqtlSMR:  DefaultPeqtlSMR,
		ThreadNum: DefaultThreadNum,
		DiffFreq:  DefaultDiffFreq,
	}
}

// Validate rejects values smr would refuse.
func (p Params) Validate() error {
	if p.PeqtlSMR <= 0 || p.PeqtlSMR > 1 {
		return fmt.Errorf("peqtl-smr must be in (0, 1], got %v", p.PeqtlSMR)
	}
	if p.ThreadNum < 1 {
		return fmt.Errorf("thread-num must be positive, got %d", p.ThreadNum)
	}
	if p.DiffFreq < 0 || p.DiffFreq > 1 {
		return fmt.Errorf("diff-freq must be in [0, 1], got %v", p.DiffFreq)
	}
	return nil
}

// formatNumber renders 1.0 as "1" and 5e-08 as "5e-08".
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
