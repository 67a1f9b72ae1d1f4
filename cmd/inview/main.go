// Command inview tracks which nodes of a layout document are inside the
// viewport, interactively in the terminal or as a one-shot check.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
