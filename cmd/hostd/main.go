// Command hostd runs a single host node: it loads a TOML configuration
// file, opens a UDP socket toward its local router, fires the startup
// traffic burst, and services the reliable request/ACK protocol until
// killed.
package main

import (
	"flag"
	"fmt"
	"net/netip"
	"os"
	"time"

	"lsproto.dev/lsproto/internal/config"
	"lsproto.dev/lsproto/internal/ctlsrv"
	"lsproto.dev/lsproto/internal/host"
	"lsproto.dev/lsproto/internal/logx"
	"lsproto.dev/lsproto/internal/sockutil"
)

func main() {
	configPath := flag.String("config", "", "path to a host TOML configuration file")
	controlSocket := flag.String("control-socket", "", "path for the hostctl introspection socket (disabled if empty)")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: hostd -config <path>")
		os.Exit(1)
	}

	conf, err := config.LoadHostConf(*configPath)
	if err != nil {
		logx.Errorf("hostd: %v", err)
	}

	sock := sockutil.NewUDPSocket()
	listenAddr := netip.MustParseAddrPort(conf.Listen)
	if err := sock.Open(listenAddr); err != nil {
		logx.Errorf("hostd: failed to bind %s: %v", conf.Listen, err)
	}

	routerAddr := netip.MustParseAddrPort(conf.Router)

	start := time.Now()
	monotonicNow := func() int64 { return int64(time.Since(start)) }

	onFailure := func(destination string, sequence uint64) {
		logx.WithFields(logx.Fields{"destination": destination, "sequence": sequence}).Warnf("hostd: request permanently abandoned")
	}

	h := host.New(conf.NodeID, sock, routerAddr, conf.KnownHosts, monotonicNow, onFailure)

	logx.WithFields(logx.Fields{"node_id": conf.NodeID, "listen": conf.Listen, "router": conf.Router}).Infof("hostd: listening")

	stop := make(chan struct{})

	if *controlSocket != "" {
		go func() {
			if err := ctlsrv.Serve(*controlSocket, h.HandleControlCommand, stop); err != nil {
				logx.Warnf("hostd: control socket failed: %v", err)
			}
		}()
	}

	h.Run(stop)
}
