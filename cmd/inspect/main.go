// Inspect a store's page file, rendering every page's node layout.
// Usage: go run ./cmd/inspect <path-to-store>
// Example: go run ./cmd/inspect simpleKVStore
package main

import (
	"fmt"
	"os"

	"github.com/cokumko/simpleKV-fido/pagefile"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <path-to-store>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Example: %s simpleKVStore\n", os.Args[0])
		os.Exit(1)
	}

	path := os.Args[1]
	pages, err := pagefile.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer pages.Close()

	if err := pages.Dump(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
