// Package main is the entry point for the sipscan SIP capture extractor.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/sipscan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
