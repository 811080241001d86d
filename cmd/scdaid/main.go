// Command scdaid is a terminal calculator for VOC analgesia plans, single doses,
// renal gates and CYP2D6 phenotype prediction.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
