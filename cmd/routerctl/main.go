// Command routerctl queries a running routerd's introspection socket and
// prints its LSDB or forwarding table, in the spirit of this lineage's
// interactive "lsdb"/"ls" commands but as a standalone tool.
package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"lsproto.dev/lsproto/internal/ctlsrv"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: routerctl <control-socket> <lsdb|fwd>")
		os.Exit(1)
	}

	socketPath, command := os.Args[1], os.Args[2]

	response, err := ctlsrv.Query(socketPath, command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "routerctl: %v\n", err)
		os.Exit(1)
	}

	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	rule := ""
	for i := 0; i < width && i < 80; i++ {
		rule += "-"
	}

	fmt.Println(rule)
	fmt.Print(response)
	fmt.Println(rule)
}
