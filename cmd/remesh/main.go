// Command remesh runs the adaptive remeshing controller on a mesh file or a
// generated square and reports the size bounds and remeshing events.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
