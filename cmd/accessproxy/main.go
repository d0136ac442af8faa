// Command accessproxy drives the provisioning connector from a shell: probe
// the tenant, list entitlements, create or update accounts and read the
// access request ledger.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr, nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
