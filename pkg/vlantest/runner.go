package vlantest

import (
	"context"
	"sync"

	"github.com/netvalid/vlanpath/pkg/util"
)

// DefaultMaxConcurrency bounds how many hosts are verified at once, to avoid
// overwhelming the vCenter API or the management link under test.
const DefaultMaxConcurrency = 4

// HostResult pairs a host with its result rows, or the discovery error that
// caused the host to be skipped.
type HostResult struct {
	Host    string
	Results []UplinkTestResult
	Err     error
}

// RunHosts verifies each host with bounded parallelism. Ordering within a
// host is strictly sequential; across hosts only the output order is
// guaranteed (same order as the input, regardless of completion order).
// Per-host discovery errors are logged and reported in the corresponding
// HostResult, never returned: one bad host must not block the rest.
//
// Cancelling ctx stops hosts that have not started and interrupts in-flight
// hosts after their current switch pass finishes teardown.
func RunHosts(ctx context.Context, v *Verifier, hosts []string, maxConcurrency int) []HostResult {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}

	results := make([]HostResult, len(hosts))
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, host := range hosts {
		if ctx.Err() != nil {
			results[i] = HostResult{Host: host, Err: ctx.Err()}
			continue
		}
		wg.Add(1)
		go func(i int, host string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				results[i] = HostResult{Host: host, Err: ctx.Err()}
				return
			}

			util.WithHost(host).Info("Starting VLAN path verification")
			rows, err := v.VerifyHost(ctx, host)
			if err != nil {
				util.WithHost(host).Errorf("Skipping host: %v", err)
			} else {
				util.WithHost(host).Infof("Verification finished: %d results", len(rows))
			}
			results[i] = HostResult{Host: host, Results: rows, Err: err}
		}(i, host)
	}

	wg.Wait()
	return results
}

// Flatten concatenates per-host rows in input order.
func Flatten(hostResults []HostResult) []UplinkTestResult {
	var all []UplinkTestResult
	for _, hr := range hostResults {
		all = append(all, hr.Results...)
	}
	return all
}
