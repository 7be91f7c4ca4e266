// Package main provides the entrypoint for superwerker.
package main

import (
	"fmt"
	"os"

	"github.com/superwerker/superwerker/cmd"
)

func main() {
	if err := cmd.New().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
