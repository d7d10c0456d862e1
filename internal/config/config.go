// Package config loads the per-process configuration that spec.md §6
// treats as externally supplied: node identity, listen endpoint, and
// (for routers) static neighbor/host attachments or (for hosts) the local
// router endpoint and known-peer set. Parsing CLI flags is explicitly out
// of scope (spec.md §1); a TOML file is the configuration input, in the
// style of this lineage's larger daemon configuration, and only its listen
// address can be overridden, by the LISTEN environment variable.
package config

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/BurntSushi/toml"
)

// listenEnv overrides the TOML file's listen address for either process
// kind, mirroring logx's LOG_LEVEL env override (spec.md §6 treats process
// configuration as externally supplied, not limited to the TOML file).
const listenEnv = "LISTEN"

// NeighborConf describes one statically-configured router neighbor.
type NeighborConf struct {
	ID   string `toml:"id"`
	Addr string `toml:"addr"`
	Cost int    `toml:"cost"`
}

// HostAttachmentConf describes one host statically attached to a router.
type HostAttachmentConf struct {
	ID   string `toml:"id"`
	Addr string `toml:"addr"`
}

// RouterConf is the root of a router process's TOML configuration file.
type RouterConf struct {
	NodeID    string               `toml:"node_id"`
	Listen    string               `toml:"listen"`
	Neighbors []NeighborConf       `toml:"neighbors"`
	Hosts     []HostAttachmentConf `toml:"hosts"`
}

// HostConf is the root of a host process's TOML configuration file.
type HostConf struct {
	NodeID     string   `toml:"node_id"`
	Listen     string   `toml:"listen"`
	Router     string   `toml:"router"`
	KnownHosts []string `toml:"known_hosts"`
}

// LoadRouterConf reads and validates a router's TOML configuration file.
func LoadRouterConf(path string) (RouterConf, error) {
	var conf RouterConf
	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return RouterConf{}, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if listen, present := os.LookupEnv(listenEnv); present {
		conf.Listen = listen
	}

	if conf.NodeID == "" {
		return RouterConf{}, fmt.Errorf("config: node_id is required")
	}
	if _, err := netip.ParseAddrPort(conf.Listen); err != nil {
		return RouterConf{}, fmt.Errorf("config: invalid listen address %q: %w", conf.Listen, err)
	}
	for i := range conf.Neighbors {
		n := &conf.Neighbors[i]
		if n.ID == "" {
			return RouterConf{}, fmt.Errorf("config: neighbor at index %d missing id", i)
		}
		if _, err := netip.ParseAddrPort(n.Addr); err != nil {
			return RouterConf{}, fmt.Errorf("config: neighbor %q has invalid addr %q: %w", n.ID, n.Addr, err)
		}
		if n.Cost <= 0 {
			n.Cost = 1 // default link cost, per spec.md §3
		}
	}
	for i, h := range conf.Hosts {
		if h.ID == "" {
			return RouterConf{}, fmt.Errorf("config: host at index %d missing id", i)
		}
		if _, err := netip.ParseAddrPort(h.Addr); err != nil {
			return RouterConf{}, fmt.Errorf("config: host %q has invalid addr %q: %w", h.ID, h.Addr, err)
		}
	}

	return conf, nil
}

// LoadHostConf reads and validates a host's TOML configuration file.
func LoadHostConf(path string) (HostConf, error) {
	var conf HostConf
	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return HostConf{}, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if listen, present := os.LookupEnv(listenEnv); present {
		conf.Listen = listen
	}

	if conf.NodeID == "" {
		return HostConf{}, fmt.Errorf("config: node_id is required")
	}
	if _, err := netip.ParseAddrPort(conf.Listen); err != nil {
		return HostConf{}, fmt.Errorf("config: invalid listen address %q: %w", conf.Listen, err)
	}
	if _, err := netip.ParseAddrPort(conf.Router); err != nil {
		return HostConf{}, fmt.Errorf("config: invalid router address %q: %w", conf.Router, err)
	}

	return conf, nil
}
