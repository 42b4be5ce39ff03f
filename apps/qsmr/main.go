package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/quatton/qsmr/apps/qsmr/cmd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "qsmr crashed: %v\n", r)
			if os.Getenv("QSMR_DEBUG") != "" {
				debug.PrintStack()
			}
			os.Exit(2)
		}
	}()

	os.Exit(cmd.Execute())
}
