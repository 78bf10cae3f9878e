// Command genclient drives the generation API from a terminal: it signs in,
// submits an image through the retrying controller and follows the job until
// it finishes.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
