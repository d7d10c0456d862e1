// Command hostctl queries a running hostd's introspection socket and
// prints its pending-request table, optionally polling until it drains
// (useful for watching Scenario 4's retransmit-then-abandon timeline
// play out against a live process).
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"lsproto.dev/lsproto/internal/ctlsrv"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: hostctl <control-socket> pending [--watch]")
		os.Exit(1)
	}

	socketPath, command := os.Args[1], os.Args[2]
	watch := len(os.Args) > 3 && os.Args[3] == "--watch"

	if !watch {
		response, err := ctlsrv.Query(socketPath, command)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hostctl: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(response)
		return
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("waiting for pending requests to drain"),
		progressbar.OptionSpinnerType(14),
	)

	for {
		response, err := ctlsrv.Query(socketPath, command)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nhostctl: %v\n", err)
			os.Exit(1)
		}

		count := strings.Count(response, "seq=")
		_ = bar.Set(count)

		if count == 0 {
			fmt.Println("\nno pending requests")
			return
		}

		time.Sleep(500 * time.Millisecond)
	}
}
