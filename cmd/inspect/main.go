package main

import (
	"flag"
	"fmt"
	"os"

	"courier/pkg/store"
)

// Offline keyspace inspector. Dumps keys (and optionally values) under a
// prefix so operators can eyeball index state without the server running.
func main() {
	var (
		dbPath = flag.String("db", "", "path to the pebble database")
		prefix = flag.String("prefix", "", "key prefix to list (e.g. conversations:, message:dm:)")
		values = flag.Bool("values", false, "print values alongside keys")
	)
	flag.Parse()
	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}

	if err := store.Open(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	keys, vals, err := store.ScanPrefixItems(*prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		os.Exit(1)
	}
	for i, k := range keys {
		if *values {
			fmt.Printf("%s\t%s\n", k, vals[i])
		} else {
			fmt.Println(k)
		}
	}
	fmt.Fprintf(os.Stderr, "%d keys under %q\n", len(keys), *prefix)
}
