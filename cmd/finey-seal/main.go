// Command finey-seal seals, opens and checks field values with the same
// secrets and token format as the finey API, and writes the budget ceilings
// the sqlite budget source serves.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}
