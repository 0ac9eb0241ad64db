// Command a2acoreserver boots an in-process demo of the A2A server core
// (C2-C9) for manual exercise — C11's CLI/config harness. It is scaffolding,
// not a transport: every RPC here is a direct Go call into the core.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
