package vsphere

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/crypto/ssh"

	"github.com/netvalid/vlanpath/pkg/infra"
	"github.com/netvalid/vlanpath/pkg/util"
)

// vmkpingSummary matches the summary line of vmkping output, e.g.
// "3 packets transmitted, 1 packets received, 66% packet loss".
var vmkpingSummary = regexp.MustCompile(`(\d+) packets transmitted, (\d+) (?:packets )?received`)

// Probe sends a vmkping burst from the test adapter over SSH to the host.
// The vSphere API has no ping facility, so this is the one capability that
// goes around vCenter. A nonzero exit with a parseable summary is a valid
// result (packet loss); only a missing summary is an error.
func (c *Client) Probe(ctx context.Context, host string, adapter infra.AdapterRef, targetIP string, count int) (infra.ProbeSummary, error) {
	cmd := fmt.Sprintf("vmkping -I %s -c %d %s", adapter.Device, count, targetIP)
	util.WithHost(host).Debugf("Running %q", cmd)

	output, runErr := c.execOnHost(ctx, host, cmd)
	summary, ok := parsePingSummary(output)
	if !ok {
		if runErr != nil {
			return infra.ProbeSummary{}, fmt.Errorf("ping produced no summary: %w", runErr)
		}
		return infra.ProbeSummary{}, fmt.Errorf("ping produced no summary: %q", output)
	}
	return summary, nil
}

// parsePingSummary extracts packet counts from ping output.
func parsePingSummary(output string) (infra.ProbeSummary, bool) {
	m := vmkpingSummary.FindStringSubmatch(output)
	if m == nil {
		return infra.ProbeSummary{}, false
	}
	tx, err1 := strconv.Atoi(m[1])
	rx, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return infra.ProbeSummary{}, false
	}
	return infra.ProbeSummary{Transmitted: tx, Received: rx}, true
}

// execOnHost runs a command on the ESXi host over SSH. The connection is
// dialed once per host and reused; sessions are per-call. The command is
// abandoned when ctx expires.
func (c *Client) execOnHost(ctx context.Context, host, cmd string) (string, error) {
	conn, err := c.sshConn(host)
	if err != nil {
		return "", err
	}

	session, err := conn.NewSession()
	if err != nil {
		// The connection may have gone stale; redial once.
		c.dropSSHConn(host)
		conn, err = c.sshConn(host)
		if err != nil {
			return "", err
		}
		session, err = conn.NewSession()
		if err != nil {
			return "", fmt.Errorf("SSH session to %s: %w", host, err)
		}
	}
	defer session.Close()

	type execResult struct {
		output []byte
		err    error
	}
	done := make(chan execResult, 1)
	go func() {
		out, err := session.CombinedOutput(cmd)
		done <- execResult{out, err}
	}()

	select {
	case <-ctx.Done():
		session.Close()
		return "", ctx.Err()
	case res := <-done:
		return string(res.output), res.err
	}
}

func (c *Client) sshConn(host string) (*ssh.Client, error) {
	c.mu.Lock()
	if conn, ok := c.sshConns[host]; ok {
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	config := &ssh.ClientConfig{
		User: c.ssh.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(c.ssh.Password),
		},
		// Management-network tool; host keys are not verified.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	conn, err := ssh.Dial("tcp", host+":22", config)
	if err != nil {
		return nil, fmt.Errorf("SSH dial %s: %w", host, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.sshConns[host]; ok {
		conn.Close()
		return existing, nil
	}
	c.sshConns[host] = conn
	return conn, nil
}

func (c *Client) dropSSHConn(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.sshConns[host]; ok {
		conn.Close()
		delete(c.sshConns, host)
	}
}
