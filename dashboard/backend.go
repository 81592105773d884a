package main

import (
	"context"
	"fmt"
	"time"

	"tailview/common"
)

// Client wraps the external VPN tool's CLI. Every interaction with the
// tool goes through here; nothing else spawns processes. All subcommands
// are fixed argument lists, never shell strings.
type Client struct {
	bin         string
	runner      common.Runner
	pingTimeout time.Duration
}

func newClient(cfg config, r common.Runner) *Client {
	if r == nil {
		r = common.ExecRunner{Timeout: cfg.cmdTimeout}
	}
	return &Client{bin: cfg.binary, runner: r, pingTimeout: cfg.pingTimeout}
}

// Status runs the status subcommand and parses its JSON payload.
func (c *Client) Status(ctx context.Context) (*common.Snapshot, error) {
	res, err := c.runner.Run(ctx, c.bin, "status", "--json")
	if err != nil {
		return nil, err
	}
	return common.ParseStatus([]byte(res.Stdout))
}

// LocalIP returns the node's VPN address via the ip subcommand.
func (c *Client) LocalIP(ctx context.Context) (string, error) {
	res, err := c.runner.Run(ctx, c.bin, "ip")
	if err != nil {
		return "", err
	}
	return common.FirstLine(res.Stdout), nil
}

// Netcheck returns the connectivity diagnostics output verbatim; it is
// meant for human eyes, not parsing.
func (c *Client) Netcheck(ctx context.Context) (string, error) {
	res, err := c.runner.Run(ctx, c.bin, "netcheck")
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// ExitNodeList returns the exit-node listing output verbatim.
func (c *Client) ExitNodeList(ctx context.Context) (string, error) {
	res, err := c.runner.Run(ctx, c.bin, "exit-node", "list")
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// Ping dispatches one ping against addr. The target must be a peer
// address in snap; anything else is rejected before the runner is
// touched so arbitrary strings never reach the command line.
func (c *Client) Ping(ctx context.Context, snap *common.Snapshot, addr string) (string, error) {
	if !snap.HasPeer(addr) {
		return "", fmt.Errorf("ping target %q is not a known peer address", addr)
	}
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()
	res, err := c.runner.Run(ctx, c.bin, "ping", addr)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// SetExitNode routes outbound traffic through the named peer, which must
// advertise exit capability in snap. An empty name clears the exit node.
func (c *Client) SetExitNode(ctx context.Context, snap *common.Snapshot, host string) error {
	if host != "" && !isExitNode(snap, host) {
		return fmt.Errorf("%q does not advertise exit-node capability", host)
	}
	_, err := c.runner.Run(ctx, c.bin, "set", "--exit-node="+host)
	return err
}

func isExitNode(snap *common.Snapshot, host string) bool {
	if snap == nil {
		return false
	}
	for _, h := range snap.ExitNodes {
		if h == host {
			return true
		}
	}
	return false
}

// Fetch assembles a complete snapshot for one refresh cycle. A status
// failure fails the cycle (the caller keeps its previous snapshot);
// netcheck and local-ip failures degrade by carrying forward the value
// from prev so the display never blanks mid-session.
func (c *Client) Fetch(ctx context.Context, prev *common.Snapshot) (*common.Snapshot, error) {
	snap, err := c.Status(ctx)
	if err != nil {
		return nil, err
	}

	if ip, err := c.LocalIP(ctx); err == nil && ip != "" {
		snap.LocalIP = ip
	}

	if nc, err := c.Netcheck(ctx); err == nil {
		snap.Netcheck = nc
	} else {
		common.VLogf("netcheck failed, keeping previous output: %v", err)
		if prev != nil {
			snap.Netcheck = prev.Netcheck
		}
	}

	snap.When = time.Now()
	return snap, nil
}
