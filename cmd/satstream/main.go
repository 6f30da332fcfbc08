// Command satstream runs and operates the payment stream ledger.
//
// Exit codes: 0 = success, 1 = operation rejected, 2 = usage,
// 3 = config, storage or network error.
package main

import (
	"fmt"
	"os"

	"github.com/heartmarshall/satstream-ledger/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
