// Command pinocchio-lexicon manages the synonym lexicon used by pinocchio: it
// imports a WordNet snapshot into PostgreSQL and inspects lexicon sources.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pinocchio-lexicon:", err)
		os.Exit(1)
	}
}
