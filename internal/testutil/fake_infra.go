// Package testutil provides a scriptable fake infrastructure client for
// verifier tests: fixed switch/portgroup inventories, programmable probe
// outcomes, injectable per-method failures, and a call log.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/netvalid/vlanpath/pkg/infra"
)

// FakeInfra implements infra.Client against in-memory state.
// The zero value is usable; populate Switches and PortGroups before use.
type FakeInfra struct {
	mu sync.Mutex

	// Switches maps host name to its switches.
	Switches map[string][]infra.SwitchDescriptor

	// PortGroups maps switch ID to its production VLAN portgroups.
	PortGroups map[string][]infra.PortGroup

	// ExistingTestNetworks pre-seeds test portgroups left by a prior run,
	// keyed by name, with their current teaming policy.
	ExistingTestNetworks map[string]infra.UplinkPolicy

	// ProbeFunc scripts probe outcomes. Nil means every probe fully succeeds
	// (received == transmitted == count).
	ProbeFunc func(host string, adapter infra.AdapterRef, targetIP string, count int) (infra.ProbeSummary, error)

	// Errs injects a failure for a method by name, e.g. "SetVlan".
	Errs map[string]error

	// internal state
	networks  map[string]*fakeNetwork // by network ID
	byName    map[string]string       // name -> network ID
	adapters  map[string]infra.AdapterRef
	nextVmk   int
	calls     []string
	destroyed []string
}

type fakeNetwork struct {
	ref    infra.NetworkRef
	vlanID int
	policy infra.UplinkPolicy
}

func (f *FakeInfra) init() {
	if f.networks == nil {
		f.networks = make(map[string]*fakeNetwork)
		f.byName = make(map[string]string)
		f.adapters = make(map[string]infra.AdapterRef)
		for name, policy := range f.ExistingTestNetworks {
			id := "pre-" + name
			f.networks[id] = &fakeNetwork{
				ref:    infra.NetworkRef{ID: id, Name: name},
				policy: policy,
			}
			f.byName[name] = id
		}
	}
}

func (f *FakeInfra) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// fmtList renders a policy role for the call log, distinguishing nil (leave
// unchanged) from an explicit empty list (clear the role).
func fmtList(s []string) string {
	if s == nil {
		return "nil"
	}
	return fmt.Sprintf("%v", s)
}

func (f *FakeInfra) fail(method string) error {
	if err, ok := f.Errs[method]; ok {
		return err
	}
	return nil
}

// Calls returns the full call log.
func (f *FakeInfra) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallsMatching returns log entries whose name matches prefix.
func (f *FakeInfra) CallsMatching(prefix string) []string {
	var out []string
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// DestroyedAdapters returns the devices destroyed, in order.
func (f *FakeInfra) DestroyedAdapters() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.destroyed...)
}

// NetworkPolicy returns the current teaming policy of the network named name.
func (f *FakeInfra) NetworkPolicy(name string) (infra.UplinkPolicy, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	id, ok := f.byName[name]
	if !ok {
		return infra.UplinkPolicy{}, false
	}
	return f.networks[id].policy, true
}

// NetworkVlan returns the current VLAN tag of the network named name.
func (f *FakeInfra) NetworkVlan(name string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	id, ok := f.byName[name]
	if !ok {
		return 0, false
	}
	return f.networks[id].vlanID, true
}

// NetworkNames returns the names of all test networks that exist.
func (f *FakeInfra) NetworkNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	var names []string
	for name := range f.byName {
		names = append(names, name)
	}
	return names
}

func (f *FakeInfra) ListSwitches(ctx context.Context, host string) ([]infra.SwitchDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("ListSwitches(%s)", host)
	if err := f.fail("ListSwitches"); err != nil {
		return nil, err
	}
	sws, ok := f.Switches[host]
	if !ok {
		return nil, fmt.Errorf("host %s not found", host)
	}
	return sws, nil
}

func (f *FakeInfra) ListVlanNetworks(ctx context.Context, host string, sw infra.SwitchDescriptor, vlanFilter int) ([]infra.PortGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("ListVlanNetworks(%s, %s, %d)", host, sw.Name, vlanFilter)
	if err := f.fail("ListVlanNetworks"); err != nil {
		return nil, err
	}
	var out []infra.PortGroup
	for _, pg := range f.PortGroups[sw.ID] {
		if vlanFilter != 0 && pg.VlanID != vlanFilter {
			continue
		}
		out = append(out, pg)
	}
	return out, nil
}

func (f *FakeInfra) GetOrCreateTestNetwork(ctx context.Context, sw infra.SwitchDescriptor, name string) (infra.NetworkRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("GetOrCreateTestNetwork(%s, %s)", sw.Name, name)
	if err := f.fail("GetOrCreateTestNetwork"); err != nil {
		return infra.NetworkRef{}, err
	}
	if id, ok := f.byName[name]; ok {
		return f.networks[id].ref, nil
	}
	id := fmt.Sprintf("net-%d", len(f.networks)+1)
	n := &fakeNetwork{ref: infra.NetworkRef{ID: id, Name: name}}
	f.networks[id] = n
	f.byName[name] = id
	return n.ref, nil
}

func (f *FakeInfra) SetVlan(ctx context.Context, network infra.NetworkRef, vlanID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("SetVlan(%s, %d)", network.Name, vlanID)
	if err := f.fail("SetVlan"); err != nil {
		return err
	}
	n, ok := f.networks[network.ID]
	if !ok {
		return fmt.Errorf("network %s not found", network.ID)
	}
	n.vlanID = vlanID
	return nil
}

func (f *FakeInfra) GetUplinkPolicy(ctx context.Context, network infra.NetworkRef) (infra.UplinkPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("GetUplinkPolicy(%s)", network.Name)
	if err := f.fail("GetUplinkPolicy"); err != nil {
		return infra.UplinkPolicy{}, err
	}
	n, ok := f.networks[network.ID]
	if !ok {
		return infra.UplinkPolicy{}, fmt.Errorf("network %s not found", network.ID)
	}
	return n.policy, nil
}

func (f *FakeInfra) SetUplinkPolicy(ctx context.Context, network infra.NetworkRef, update infra.PolicyUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("SetUplinkPolicy(%s, active=%s standby=%s unused=%s)", network.Name, fmtList(update.Active), fmtList(update.Standby), fmtList(update.Unused))
	if err := f.fail("SetUplinkPolicy"); err != nil {
		return err
	}
	n, ok := f.networks[network.ID]
	if !ok {
		return fmt.Errorf("network %s not found", network.ID)
	}
	if update.Active != nil {
		n.policy.Active = update.Active
	}
	if update.Standby != nil {
		n.policy.Standby = update.Standby
	}
	if update.Unused != nil {
		n.policy.Unused = update.Unused
	}
	return nil
}

func (f *FakeInfra) GetOrCreateTestAdapter(ctx context.Context, host string, sw infra.SwitchDescriptor, network infra.NetworkRef) (infra.AdapterRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("GetOrCreateTestAdapter(%s, %s, %s)", host, sw.Name, network.Name)
	if err := f.fail("GetOrCreateTestAdapter"); err != nil {
		return infra.AdapterRef{}, err
	}
	key := host + "/" + sw.ID
	if ad, ok := f.adapters[key]; ok {
		return ad, nil
	}
	f.nextVmk++
	ad := infra.AdapterRef{Device: fmt.Sprintf("vmk%d", f.nextVmk+1)}
	f.adapters[key] = ad
	return ad, nil
}

func (f *FakeInfra) ConfigureStaticAddress(ctx context.Context, host string, adapter infra.AdapterRef, ip, mask string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("ConfigureStaticAddress(%s, %s, %s, %s)", host, adapter.Device, ip, mask)
	return f.fail("ConfigureStaticAddress")
}

func (f *FakeInfra) ConfigureDHCP(ctx context.Context, host string, adapter infra.AdapterRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("ConfigureDHCP(%s, %s)", host, adapter.Device)
	return f.fail("ConfigureDHCP")
}

func (f *FakeInfra) DestroyAdapter(ctx context.Context, host string, adapter infra.AdapterRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("DestroyAdapter(%s, %s)", host, adapter.Device)
	if err := f.fail("DestroyAdapter"); err != nil {
		return err
	}
	f.destroyed = append(f.destroyed, adapter.Device)
	for key, ad := range f.adapters {
		if ad.Device == adapter.Device {
			delete(f.adapters, key)
		}
	}
	return nil
}

func (f *FakeInfra) DestroyNetwork(ctx context.Context, network infra.NetworkRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("DestroyNetwork(%s)", network.Name)
	if err := f.fail("DestroyNetwork"); err != nil {
		return err
	}
	delete(f.networks, network.ID)
	delete(f.byName, network.Name)
	return nil
}

func (f *FakeInfra) Probe(ctx context.Context, host string, adapter infra.AdapterRef, targetIP string, count int) (infra.ProbeSummary, error) {
	f.mu.Lock()
	probeFn := f.ProbeFunc
	f.init()
	f.record("Probe(%s, %s, %s, %d)", host, adapter.Device, targetIP, count)
	f.mu.Unlock()
	if err := f.fail("Probe"); err != nil {
		return infra.ProbeSummary{}, err
	}
	if probeFn != nil {
		return probeFn(host, adapter, targetIP, count)
	}
	return infra.ProbeSummary{Transmitted: count, Received: count}, nil
}
