// Command increases counts strictly increasing transitions in a file of
// integer measurements, one per line.
package main

import (
	"fmt"
	"os"

	"codeberg.org/halvard/stanza/internal/scan"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <file>\n", os.Args[0])
		os.Exit(1)
	}

	count, err := scan.CountIncreasesInFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}

	fmt.Println(count)
}
