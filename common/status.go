package common

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Placeholders substituted for absent optional fields so required
// Snapshot attributes are never empty.
const (
	UnknownHost = "?"
	UnknownAddr = "?"
	UnknownOS   = "unknown"
)

// Peer is one other device visible through the mesh. Identity within a
// Snapshot is the VPN-assigned IP.
type Peer struct {
	Hostname string
	IP       string
	Online   bool
	// ExitNode reports exit-node capability; ExitNodeActive reports the
	// peer currently routing our outbound traffic.
	ExitNode       bool
	ExitNodeActive bool
	OS             string
}

// Snapshot is an immutable view of network status at one refresh cycle.
// The refresher builds a fresh value each cycle and replaces the previous
// one wholesale; consumers never mutate it.
type Snapshot struct {
	LocalIP      string
	BackendState string
	Peers        []Peer
	ExitNodes    []string // hostnames advertising exit capability
	ActiveExit   string   // hostname of the exit node in use, empty if none
	Netcheck     string
	When         time.Time
}

// HasPeer reports whether addr is a known peer IP in this snapshot.
func (s *Snapshot) HasPeer(addr string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.Peers {
		if p.IP == addr {
			return true
		}
	}
	return false
}

// PeerByIP returns the peer with the given VPN address.
func (s *Snapshot) PeerByIP(addr string) (Peer, bool) {
	if s == nil {
		return Peer{}, false
	}
	for _, p := range s.Peers {
		if p.IP == addr {
			return p, true
		}
	}
	return Peer{}, false
}

// ExitSummary renders the one-line exit-node state for the summary panel.
func (s *Snapshot) ExitSummary() string {
	nodes := "none"
	if len(s.ExitNodes) > 0 {
		nodes = strings.Join(s.ExitNodes, ", ")
	}
	using := "not using an exit node"
	if s.ActiveExit != "" {
		using = "using exit node " + s.ActiveExit
	}
	return fmt.Sprintf("Exit nodes: %s (%s)", nodes, using)
}

// Wire shape of `tailscale status --json`, limited to the fields the
// dashboard reads. ExitNode marks the node currently in use as our exit;
// ExitNodeOption marks a node offering the capability.
type statusNode struct {
	HostName       string   `json:"HostName"`
	OS             string   `json:"OS"`
	TailscaleIPs   []string `json:"TailscaleIPs"`
	Online         bool     `json:"Online"`
	ExitNode       bool     `json:"ExitNode"`
	ExitNodeOption bool     `json:"ExitNodeOption"`
}

type statusDoc struct {
	BackendState string                `json:"BackendState"`
	Self         *statusNode           `json:"Self"`
	Peer         map[string]statusNode `json:"Peer"`
}

// ParseStatus decodes the status subcommand's JSON payload into a
// Snapshot fragment (Netcheck and When are filled by the refresher).
// Missing optional fields degrade to placeholders; only an undecodable
// payload is an error, in which case the caller must keep its previous
// snapshot rather than blank the display.
func ParseStatus(raw []byte) (*Snapshot, error) {
	var doc statusDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse status payload: %w", err)
	}

	snap := &Snapshot{BackendState: doc.BackendState}
	if doc.Self != nil {
		snap.LocalIP = pickAddr(doc.Self.TailscaleIPs)
	}

	for _, node := range doc.Peer {
		p := Peer{
			Hostname:       node.HostName,
			IP:             pickAddr(node.TailscaleIPs),
			Online:         node.Online,
			ExitNode:       node.ExitNode || node.ExitNodeOption,
			ExitNodeActive: node.ExitNode,
			OS:             node.OS,
		}
		if p.Hostname == "" {
			p.Hostname = UnknownHost
		}
		if p.OS == "" {
			p.OS = UnknownOS
		}
		snap.Peers = append(snap.Peers, p)
	}
	// JSON maps are unordered; the table wants a stable order.
	sort.Slice(snap.Peers, func(i, j int) bool {
		if snap.Peers[i].Hostname != snap.Peers[j].Hostname {
			return snap.Peers[i].Hostname < snap.Peers[j].Hostname
		}
		return snap.Peers[i].IP < snap.Peers[j].IP
	})

	for _, p := range snap.Peers {
		if p.ExitNode {
			snap.ExitNodes = append(snap.ExitNodes, p.Hostname)
		}
		if p.ExitNodeActive && snap.ActiveExit == "" {
			snap.ActiveExit = p.Hostname
		}
	}
	return snap, nil
}

// pickAddr prefers the IPv4 address from a node's address list.
func pickAddr(addrs []string) string {
	if len(addrs) == 0 {
		return UnknownAddr
	}
	for _, a := range addrs {
		if !strings.Contains(a, ":") {
			return a
		}
	}
	return addrs[0]
}
