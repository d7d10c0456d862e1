// Command routerd runs a single router node: it loads a TOML
// configuration file, opens a UDP socket, and drives LSA flooding,
// Dijkstra recomputation, and datagram forwarding until killed.
package main

import (
	"flag"
	"fmt"
	"net/netip"
	"os"
	"time"

	"lsproto.dev/lsproto/internal/config"
	"lsproto.dev/lsproto/internal/ctlsrv"
	"lsproto.dev/lsproto/internal/logx"
	"lsproto.dev/lsproto/internal/router"
	"lsproto.dev/lsproto/internal/sockutil"
)

func main() {
	configPath := flag.String("config", "", "path to a router TOML configuration file")
	controlSocket := flag.String("control-socket", "", "path for the routerctl introspection socket (disabled if empty)")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: routerd -config <path>")
		os.Exit(1)
	}

	conf, err := config.LoadRouterConf(*configPath)
	if err != nil {
		logx.Errorf("routerd: %v", err)
	}

	sock := sockutil.NewUDPSocket()
	listenAddr := netip.MustParseAddrPort(conf.Listen)
	if err := sock.Open(listenAddr); err != nil {
		logx.Errorf("routerd: failed to bind %s: %v", conf.Listen, err)
	}

	neighbors := make([]router.Neighbor, 0, len(conf.Neighbors))
	for _, n := range conf.Neighbors {
		neighbors = append(neighbors, router.Neighbor{
			ID: n.ID, Endpoint: netip.MustParseAddrPort(n.Addr), Cost: n.Cost,
		})
	}
	hosts := make([]router.HostAttachment, 0, len(conf.Hosts))
	for _, h := range conf.Hosts {
		hosts = append(hosts, router.HostAttachment{ID: h.ID, Endpoint: netip.MustParseAddrPort(h.Addr)})
	}

	start := time.Now()
	monotonicNow := func() int64 { return int64(time.Since(start)) }

	r := router.New(conf.NodeID, sock, neighbors, hosts, monotonicNow)

	logx.WithFields(logx.Fields{"node_id": conf.NodeID, "listen": conf.Listen}).Infof("routerd: listening")

	stop := make(chan struct{})

	if *controlSocket != "" {
		go func() {
			if err := ctlsrv.Serve(*controlSocket, r.HandleControlCommand, stop); err != nil {
				logx.Warnf("routerd: control socket failed: %v", err)
			}
		}()
	}

	r.Run(stop)
}
