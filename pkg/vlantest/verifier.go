package vlantest

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/netvalid/vlanpath/pkg/infra"
	"github.com/netvalid/vlanpath/pkg/util"
)

// Defaults for probe behavior. Three packets matches the burst size the
// on-host diagnostic ping sends by default.
const (
	DefaultProbeCount   = 3
	DefaultProbeTimeout = 20 * time.Second

	teardownTimeout = 30 * time.Second
)

// Options controls a verification run.
type Options struct {
	// VlanFilter restricts testing to a single VLAN when nonzero.
	VlanFilter int

	// ExcludeSwitches is a list of glob patterns (path.Match syntax) of
	// switch names to skip entirely, e.g. "*storage*" for switches that
	// carry only storage traffic.
	ExcludeSwitches []string

	// ProbeCount is the number of ICMP packets per uplink test.
	ProbeCount int

	// ProbeTimeout bounds a single probe call.
	ProbeTimeout time.Duration

	// CleanupNetwork removes the ephemeral test portgroup at the end of each
	// switch pass. Off by default: leaving the portgroup behind makes
	// repeated runs faster, and get-or-create adopts it next time.
	CleanupNetwork bool
}

// Verifier tests VLAN reachability per uplink on the switches of a host.
// It is the sole writer of the ephemeral portgroup and adapter for the
// duration of one switch pass; runs on distinct hosts are independent.
type Verifier struct {
	client infra.Client
	specs  SpecSet
	opts   Options
}

// NewVerifier creates a verifier over the given infrastructure client and
// spec set. Zero-valued options get defaults.
func NewVerifier(client infra.Client, specs SpecSet, opts Options) *Verifier {
	if opts.ProbeCount <= 0 {
		opts.ProbeCount = DefaultProbeCount
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	return &Verifier{client: client, specs: specs, opts: opts}
}

// TestNetworkName derives the deterministic ephemeral portgroup name for a
// switch. DVS UUIDs contain spaces, so the ID is sanitized first; the result
// is stable across runs.
func TestNetworkName(sw infra.SwitchDescriptor) string {
	return TestNetworkPrefix + util.SanitizeName(sw.ID)
}

// VerifyHost tests all non-excluded switches on host and returns one result
// row per (switch, uplink, VLAN), or a NoIP row per VLAN without a spec.
// A switch or VLAN that fails does not abort the rest; only a failure to
// enumerate switches at all is returned as an error (the host is skipped).
func (v *Verifier) VerifyHost(ctx context.Context, host string) ([]UplinkTestResult, error) {
	switches, err := v.client.ListSwitches(ctx, host)
	if err != nil {
		return nil, util.NewDiscoveryError(host, "switches", err)
	}

	var results []UplinkTestResult
	for _, sw := range switches {
		if v.excluded(sw.Name) {
			util.WithSwitch(host, sw.Name).Debug("Switch excluded by pattern, skipping")
			continue
		}
		if ctx.Err() != nil {
			break
		}
		pass := &switchPass{
			v:        v,
			host:     host,
			sw:       sw,
			testName: TestNetworkName(sw),
		}
		results = append(results, pass.run(ctx)...)
	}
	return results, nil
}

func (v *Verifier) excluded(switchName string) bool {
	for _, pattern := range v.opts.ExcludeSwitches {
		if ok, err := path.Match(pattern, switchName); err == nil && ok {
			return true
		}
	}
	return false
}

// switchPass owns the ephemeral resources for one switch's test pass: a
// single test portgroup (retagged per VLAN) and a single test adapter,
// shared across all VLANs on the switch.
type switchPass struct {
	v        *Verifier
	host     string
	sw       infra.SwitchDescriptor
	testName string

	testNet *infra.NetworkRef
	adapter *infra.AdapterRef
}

// run tests every candidate VLAN on the switch and then tears down the test
// adapter exactly once, even when the context was cancelled mid-pass. The
// test portgroup is deliberately left in place for the next run unless
// CleanupNetwork is set.
func (p *switchPass) run(ctx context.Context) []UplinkTestResult {
	defer p.teardown()

	log := util.WithSwitch(p.host, p.sw.Name)
	candidates, err := p.v.client.ListVlanNetworks(ctx, p.host, p.sw, p.v.opts.VlanFilter)
	if err != nil {
		log.Errorf("Listing VLAN portgroups: %v", err)
		return nil
	}

	var results []UplinkTestResult
	for _, pg := range candidates {
		// Never test against an ephemeral portgroup, ours or a leftover.
		if strings.HasPrefix(pg.Name, TestNetworkPrefix) {
			continue
		}

		spec, ok := p.v.specs.Lookup(pg.VlanID)
		if !ok {
			util.WithVlan(p.host, p.sw.Name, pg.VlanID).Info("No spec for VLAN, skipping")
			results = append(results, UplinkTestResult{
				Host:    p.host,
				Switch:  p.sw.Name,
				VlanID:  pg.VlanID,
				Status:  StatusNoIP,
				Message: MsgNoSpec,
			})
			continue
		}

		if ctx.Err() != nil {
			break
		}
		results = append(results, p.verifyVlan(ctx, pg, spec)...)
	}
	return results
}

// verifyVlan provisions the ephemeral portgroup/adapter for one VLAN, syncs
// the teaming policy from the production portgroup, and probes each active
// uplink in isolation. Provisioning failures become a single Failed row.
func (p *switchPass) verifyVlan(ctx context.Context, pg infra.PortGroup, spec VlanTestSpec) []UplinkTestResult {
	log := util.WithVlan(p.host, p.sw.Name, pg.VlanID)

	fail := func(err error) []UplinkTestResult {
		log.Errorf("%v", err)
		return []UplinkTestResult{{
			Host:    p.host,
			Switch:  p.sw.Name,
			VlanID:  pg.VlanID,
			Status:  StatusFailed,
			Message: err.Error(),
		}}
	}

	// Ephemeral portgroup, retagged to the VLAN under test.
	testNet, err := p.v.client.GetOrCreateTestNetwork(ctx, p.sw, p.testName)
	if err != nil {
		return fail(util.NewProvisioningError("create-portgroup", p.testName, err))
	}
	p.testNet = &testNet
	if err := p.v.client.SetVlan(ctx, testNet, pg.VlanID); err != nil {
		return fail(util.NewProvisioningError("set-vlan", p.testName, err))
	}

	// Test adapter, addressed per the spec.
	adapter, err := p.v.client.GetOrCreateTestAdapter(ctx, p.host, p.sw, testNet)
	if err != nil {
		return fail(util.NewProvisioningError("create-adapter", p.testName, err))
	}
	p.adapter = &adapter
	if spec.DHCP() {
		err = p.v.client.ConfigureDHCP(ctx, p.host, adapter)
	} else {
		err = p.v.client.ConfigureStaticAddress(ctx, p.host, adapter, spec.TestIP, spec.TestMask)
	}
	if err != nil {
		return fail(util.NewProvisioningError("configure-address", adapter.Device, err))
	}

	// Mirror the production teaming policy so uplink results reflect
	// production failover behavior. Standby and unused are written before
	// active: an uplink must never be absent from every role at once, which
	// the platform rejects.
	current, err := p.v.client.GetUplinkPolicy(ctx, testNet)
	if err != nil {
		return fail(util.NewProvisioningError("read-policy", p.testName, err))
	}
	if !util.SameStringSet(current.Active, pg.Policy.Active) {
		log.Debugf("Syncing teaming policy from %s", pg.Name)
		update := infra.PolicyUpdate{
			Standby: orEmpty(pg.Policy.Standby),
			Unused:  orEmpty(pg.Policy.Unused),
		}
		if err := p.v.client.SetUplinkPolicy(ctx, testNet, update); err != nil {
			return fail(util.NewProvisioningError("sync-policy", p.testName, err))
		}
		if err := p.v.client.SetUplinkPolicy(ctx, testNet, infra.PolicyUpdate{Active: orEmpty(pg.Policy.Active)}); err != nil {
			return fail(util.NewProvisioningError("sync-policy", p.testName, err))
		}
	}

	// Re-read rather than trusting our own write: the active list after sync
	// is the definitive set of uplinks to test.
	synced, err := p.v.client.GetUplinkPolicy(ctx, testNet)
	if err != nil {
		return fail(util.NewProvisioningError("read-policy", p.testName, err))
	}
	uplinks := synced.Active

	var results []UplinkTestResult
	for _, uplink := range uplinks {
		if ctx.Err() != nil {
			break
		}
		results = append(results, p.testUplink(ctx, pg.VlanID, spec, adapter, testNet, uplink, uplinks))
	}
	return results
}

// testUplink isolates one uplink (when the switch has more than one) and
// sends a probe burst over it.
func (p *switchPass) testUplink(ctx context.Context, vlanID int, spec VlanTestSpec, adapter infra.AdapterRef, testNet infra.NetworkRef, uplink string, all []string) UplinkTestResult {
	log := util.WithVlan(p.host, p.sw.Name, vlanID).WithField("uplink", uplink)
	result := UplinkTestResult{
		Host:   p.host,
		Switch: p.sw.Name,
		Uplink: uplink,
		VlanID: vlanID,
	}

	if len(all) > 1 {
		update := infra.PolicyUpdate{
			Active:  []string{uplink},
			Standby: []string{},
			Unused:  util.WithoutString(all, uplink),
		}
		if err := p.v.client.SetUplinkPolicy(ctx, testNet, update); err != nil {
			perr := util.NewProvisioningError("isolate-uplink", uplink, err)
			log.Errorf("%v", perr)
			result.Status = StatusFailed
			result.Message = perr.Error()
			return result
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.v.opts.ProbeTimeout)
	summary, err := p.v.client.Probe(probeCtx, p.host, adapter, spec.TargetIP, p.v.opts.ProbeCount)
	cancel()
	if err != nil {
		// Failed probes are the signal being measured; no retry.
		log.Warnf("Probe to %s returned no results: %v", spec.TargetIP, err)
		result.Status = StatusFailed
		result.Message = MsgNoProbeData
		return result
	}

	result.Transmitted = summary.Transmitted
	result.Received = summary.Received
	result.Status = Classify(summary.Transmitted, summary.Received)
	log.Debugf("Probe to %s: %d/%d (%s)", spec.TargetIP, summary.Received, summary.Transmitted, result.Status)
	return result
}

// teardown destroys the test adapter unconditionally and, when configured,
// the test portgroup. It uses a fresh context so cleanup still runs after an
// interrupt.
func (p *switchPass) teardown() {
	if p.adapter == nil && (p.testNet == nil || !p.v.opts.CleanupNetwork) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	log := util.WithSwitch(p.host, p.sw.Name)
	if p.adapter != nil {
		if err := p.v.client.DestroyAdapter(ctx, p.host, *p.adapter); err != nil {
			log.Errorf("Destroying test adapter %s: %v", p.adapter.Device, err)
		} else {
			log.Debugf("Destroyed test adapter %s", p.adapter.Device)
		}
	}
	if p.v.opts.CleanupNetwork && p.testNet != nil {
		if err := p.v.client.DestroyNetwork(ctx, *p.testNet); err != nil {
			log.Errorf("Destroying test portgroup %s: %v", p.testNet.Name, err)
		}
	}
}

// orEmpty maps nil to an empty slice so a PolicyUpdate clears the role
// instead of leaving it unchanged.
func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
