package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/quatton/qsmr/pkg/qerr"
)

// Exit codes.
const (
	exitOK                = 0
	exitFatal             = 1
	exitInvocationsFailed = 3
)

// errInvocationsFailed marks a run that finished but recorded failures.
var errInvocationsFailed = errors.New("some invocations failed")

// exitCode prints err with guidance for known codes and picks the exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, errInvocationsFailed) {
		fmt.Fprintf(os.Stderr, "⚠️  %v (see the report for details)\n", err)
		return exitInvocationsFailed
	}

	switch {
	case qerr.IsCode(err, qerr.CodeOutputDirExists):
		fmt.Fprintf(os.Stderr, "❌ %v\n   remove or rename it, or choose another --output-root\n", err)
	case qerr.IsCode(err, qerr.CodeLabelLocked):
		fmt.Fprintf(os.Stderr, "❌ %v\n   another run holds this label; wait for it or raise lock.ttl if it crashed\n", err)
	case qerr.IsCode(err, qerr.CodeInvalidJob):
		fmt.Fprintf(os.Stderr, "❌ %v\n   fix the job definition in your config\n", err)
	case qerr.IsCode(err, qerr.CodeConfig):
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	case qerr.IsCode(err, qerr.CodeInvocationFailed):
		fmt.Fprintf(os.Stderr, "❌ %v\n   stopped by policy.onFailure=halt\n", err)
	default:
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	}
	return exitFatal
}
