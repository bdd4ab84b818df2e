// Command snapshot loads orbital state files for two objects, computes the
// relative-motion statistics of a selected epoch in the first object's VNB
// frame, and estimates a probability of collision against a hard-body
// radius.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
