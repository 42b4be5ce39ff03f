// Package smr models SMR (summary-data-based Mendelian randomization) batch
// jobs and turns them into the exact command lines the smr binary expects.
//
// Nothing here runs a process or touches the filesystem: a Job crossed with
// its SNPs and a list of outcome datasets yields an ordered slice of
// Invocations, each carrying a deterministic output prefix and argv.
package smr
