package vlantest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/netvalid/vlanpath/internal/testutil"
	"github.com/netvalid/vlanpath/pkg/infra"
)

var (
	testHost   = "esx01.lab"
	testSwitch = infra.SwitchDescriptor{ID: "dvs-21", Name: "dvs-compute"}

	vlan10Spec = VlanTestSpec{VlanID: 10, TestIP: "10.0.10.5", TestMask: "255.255.255.0", TargetIP: "10.0.10.1"}
)

// fixture builds a fake with one host, one switch, and the given portgroups.
func fixture(pgs ...infra.PortGroup) *testutil.FakeInfra {
	return &testutil.FakeInfra{
		Switches:   map[string][]infra.SwitchDescriptor{testHost: {testSwitch}},
		PortGroups: map[string][]infra.PortGroup{testSwitch.ID: pgs},
	}
}

func prodPG(vlanID int, uplinks ...string) infra.PortGroup {
	return infra.PortGroup{
		Name:   fmt.Sprintf("prod-vlan%d", vlanID),
		VlanID: vlanID,
		Policy: infra.UplinkPolicy{Active: uplinks},
	}
}

func verify(t *testing.T, fake *testutil.FakeInfra, specs SpecSet, opts Options) []UplinkTestResult {
	t.Helper()
	v := NewVerifier(fake, specs, opts)
	results, err := v.VerifyHost(context.Background(), testHost)
	if err != nil {
		t.Fatalf("VerifyHost: %v", err)
	}
	return results
}

func TestSingleUplinkPassed(t *testing.T) {
	fake := fixture(prodPG(10, "dvUplink1"))
	fake.ProbeFunc = func(host string, ad infra.AdapterRef, target string, count int) (infra.ProbeSummary, error) {
		if target != "10.0.10.1" {
			t.Errorf("probe target = %s, want 10.0.10.1", target)
		}
		return infra.ProbeSummary{Transmitted: 3, Received: 3}, nil
	}

	results := verify(t, fake, SpecSet{10: vlan10Spec}, Options{})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d: %+v", len(results), results)
	}
	r := results[0]
	if r.Status != StatusPassed || r.Transmitted != 3 || r.Received != 3 {
		t.Errorf("result = %+v, want Passed 3/3", r)
	}
	if r.Host != testHost || r.Switch != testSwitch.Name || r.Uplink != "dvUplink1" || r.VlanID != 10 {
		t.Errorf("result identity wrong: %+v", r)
	}

	// Single uplink: no isolation write is needed.
	for _, c := range fake.CallsMatching("SetUplinkPolicy") {
		if strings.Contains(c, "active=[dvUplink1] standby=[] unused=") {
			t.Errorf("unexpected isolation write with a single uplink: %s", c)
		}
	}
}

func TestPartialLoss(t *testing.T) {
	fake := fixture(prodPG(10, "dvUplink1"))
	fake.ProbeFunc = func(string, infra.AdapterRef, string, int) (infra.ProbeSummary, error) {
		return infra.ProbeSummary{Transmitted: 3, Received: 1}, nil
	}

	results := verify(t, fake, SpecSet{10: vlan10Spec}, Options{})
	if len(results) != 1 || results[0].Status != StatusPartial {
		t.Fatalf("expected one Partial result, got %+v", results)
	}
}

func TestNoSpecEmitsNoIPWithoutProvisioning(t *testing.T) {
	fake := fixture(prodPG(20, "dvUplink1"))

	results := verify(t, fake, SpecSet{10: vlan10Spec}, Options{})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Status != StatusNoIP || r.Message != MsgNoSpec || r.VlanID != 20 {
		t.Errorf("result = %+v, want NoIP with %q", r, MsgNoSpec)
	}
	if r.Uplink != "" {
		t.Errorf("NoIP row should have no uplink, got %q", r.Uplink)
	}

	// No ephemeral resource may be touched for an unmatched VLAN.
	if calls := fake.CallsMatching("GetOrCreateTestNetwork"); len(calls) != 0 {
		t.Errorf("test network created for unmatched VLAN: %v", calls)
	}
	if calls := fake.CallsMatching("GetOrCreateTestAdapter"); len(calls) != 0 {
		t.Errorf("test adapter created for unmatched VLAN: %v", calls)
	}
	if destroyed := fake.DestroyedAdapters(); len(destroyed) != 0 {
		t.Errorf("nothing to tear down, but destroyed %v", destroyed)
	}
}

func TestProbeErrorIsFailedWithFixedMessage(t *testing.T) {
	fake := fixture(prodPG(10, "dvUplink1"))
	fake.ProbeFunc = func(string, infra.AdapterRef, string, int) (infra.ProbeSummary, error) {
		return infra.ProbeSummary{}, fmt.Errorf("esxcli exploded")
	}

	results := verify(t, fake, SpecSet{10: vlan10Spec}, Options{})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Status != StatusFailed || r.Message != MsgNoProbeData {
		t.Errorf("result = %+v, want Failed with %q", r, MsgNoProbeData)
	}
}

func TestPolicySyncSkippedWhenActiveSetsMatch(t *testing.T) {
	pg := infra.PortGroup{
		Name:   "prod-vlan10",
		VlanID: 10,
		Policy: infra.UplinkPolicy{Active: []string{"dvUplink1", "dvUplink2"}},
	}
	fake := fixture(pg)
	// Leftover test portgroup whose active set already matches production,
	// in a different order.
	fake.ExistingTestNetworks = map[string]infra.UplinkPolicy{
		TestNetworkName(testSwitch): {Active: []string{"dvUplink2", "dvUplink1"}},
	}

	verify(t, fake, SpecSet{10: vlan10Spec}, Options{})

	// Every policy write must be an isolation write (exactly one active
	// uplink); the bulk sync step is skipped when the sets already match.
	writes := fake.CallsMatching("SetUplinkPolicy")
	if len(writes) != 2 {
		t.Fatalf("expected exactly 2 isolation writes, got %d: %v", len(writes), writes)
	}
	for _, w := range writes {
		if !strings.Contains(w, "active=[dvUplink1]") && !strings.Contains(w, "active=[dvUplink2]") {
			t.Errorf("unexpected non-isolation policy write: %s", w)
		}
	}
}

func TestPolicySyncOrderStandbyUnusedBeforeActive(t *testing.T) {
	pg := infra.PortGroup{
		Name:   "prod-vlan10",
		VlanID: 10,
		Policy: infra.UplinkPolicy{
			Active:  []string{"dvUplink1"},
			Standby: []string{"dvUplink2"},
			Unused:  []string{"dvUplink3"},
		},
	}
	fake := fixture(pg)

	verify(t, fake, SpecSet{10: vlan10Spec}, Options{})

	writes := fake.CallsMatching("SetUplinkPolicy")
	if len(writes) < 2 {
		t.Fatalf("expected at least 2 policy writes for sync, got %v", writes)
	}
	// First write carries standby+unused and leaves active unchanged;
	// second write sets active.
	if !strings.Contains(writes[0], "active=nil") ||
		!strings.Contains(writes[0], "standby=[dvUplink2]") ||
		!strings.Contains(writes[0], "unused=[dvUplink3]") {
		t.Errorf("first sync write should set standby/unused only: %s", writes[0])
	}
	if !strings.Contains(writes[1], "active=[dvUplink1]") {
		t.Errorf("second sync write should set active: %s", writes[1])
	}
}

func TestUplinkIsolationProbesSyncedActiveSet(t *testing.T) {
	pg := infra.PortGroup{
		Name:   "prod-vlan10",
		VlanID: 10,
		Policy: infra.UplinkPolicy{Active: []string{"dvUplink1", "dvUplink2"}},
	}
	fake := fixture(pg)
	fake.ProbeFunc = func(string, infra.AdapterRef, string, int) (infra.ProbeSummary, error) {
		return infra.ProbeSummary{Transmitted: 3, Received: 3}, nil
	}

	results := verify(t, fake, SpecSet{10: vlan10Spec}, Options{})

	if len(results) != 2 {
		t.Fatalf("expected one result per uplink, got %d: %+v", len(results), results)
	}
	probed := map[string]bool{}
	for _, r := range results {
		probed[r.Uplink] = true
	}
	if !probed["dvUplink1"] || !probed["dvUplink2"] {
		t.Errorf("probed uplinks = %v, want both dvUplink1 and dvUplink2", probed)
	}

	// Each uplink's probe is preceded by an isolation write marking the
	// siblings unused.
	writes := fake.CallsMatching("SetUplinkPolicy")
	var isolations []string
	for _, w := range writes {
		if strings.Contains(w, "unused=[dvUplink1]") || strings.Contains(w, "unused=[dvUplink2]") {
			isolations = append(isolations, w)
		}
	}
	if len(isolations) != 2 {
		t.Errorf("expected 2 isolation writes, got %d: %v", len(isolations), writes)
	}
}

func TestAdapterDestroyedOncePerSwitchPass(t *testing.T) {
	// Two VLANs on the switch; the adapter is shared and torn down once.
	fake := fixture(prodPG(10, "dvUplink1"), prodPG(30, "dvUplink1"))
	specs := SpecSet{
		10: vlan10Spec,
		30: {VlanID: 30, TestIP: "10.0.30.5", TestMask: "255.255.255.0", TargetIP: "10.0.30.1"},
	}

	verify(t, fake, specs, Options{})

	if destroyed := fake.DestroyedAdapters(); len(destroyed) != 1 {
		t.Errorf("adapter should be destroyed exactly once, got %v", destroyed)
	}
}

func TestAdapterDestroyedDespiteFailures(t *testing.T) {
	fake := fixture(prodPG(10, "dvUplink1"))
	fake.Errs = map[string]error{"ConfigureStaticAddress": fmt.Errorf("address in use")}

	results := verify(t, fake, SpecSet{10: vlan10Spec}, Options{})

	if len(results) != 1 || results[0].Status != StatusFailed {
		t.Fatalf("expected one Failed result, got %+v", results)
	}
	if !strings.Contains(results[0].Message, "address in use") {
		t.Errorf("Failed result should carry the provisioning error: %q", results[0].Message)
	}
	if destroyed := fake.DestroyedAdapters(); len(destroyed) != 1 {
		t.Errorf("adapter should still be destroyed after a failure, got %v", destroyed)
	}
}

func TestProvisioningFailureDoesNotBlockOtherVlans(t *testing.T) {
	fake := fixture(prodPG(10, "dvUplink1"), prodPG(30, "dvUplink1"))
	fake.Errs = map[string]error{"SetVlan": fmt.Errorf("reconfigure rejected")}
	specs := SpecSet{
		10: vlan10Spec,
		30: {VlanID: 30, TestIP: "10.0.30.5", TestMask: "255.255.255.0", TargetIP: "10.0.30.1"},
	}

	results := verify(t, fake, specs, Options{})

	if len(results) != 2 {
		t.Fatalf("both VLANs should report, got %d: %+v", len(results), results)
	}
	for _, r := range results {
		if r.Status != StatusFailed {
			t.Errorf("VLAN %d: status = %s, want Failed", r.VlanID, r.Status)
		}
	}
}

func TestEphemeralNetworkReusedAcrossRuns(t *testing.T) {
	fake := fixture(prodPG(10, "dvUplink1"))
	specs := SpecSet{10: vlan10Spec}

	verify(t, fake, specs, Options{})
	verify(t, fake, specs, Options{})

	names := fake.NetworkNames()
	if len(names) != 1 {
		t.Fatalf("expected one test network after two runs, got %v", names)
	}
	want := TestNetworkName(testSwitch)
	if names[0] != want {
		t.Errorf("test network name = %q, want %q", names[0], want)
	}
}

func TestCleanupNetworkOption(t *testing.T) {
	fake := fixture(prodPG(10, "dvUplink1"))

	verify(t, fake, SpecSet{10: vlan10Spec}, Options{CleanupNetwork: true})

	if names := fake.NetworkNames(); len(names) != 0 {
		t.Errorf("cleanup enabled, but networks remain: %v", names)
	}
}

func TestVlanFilterRestrictsToOneVlan(t *testing.T) {
	fake := fixture(prodPG(10, "dvUplink1"), prodPG(30, "dvUplink1"))
	specs := SpecSet{
		10: vlan10Spec,
		30: {VlanID: 30, TestIP: "10.0.30.5", TestMask: "255.255.255.0", TargetIP: "10.0.30.1"},
	}

	results := verify(t, fake, specs, Options{VlanFilter: 30})

	if len(results) != 1 || results[0].VlanID != 30 {
		t.Fatalf("expected only VLAN 30 results, got %+v", results)
	}
}

func TestExcludedSwitchIsSkipped(t *testing.T) {
	storage := infra.SwitchDescriptor{ID: "dvs-99", Name: "dvs-storage"}
	fake := &testutil.FakeInfra{
		Switches: map[string][]infra.SwitchDescriptor{testHost: {testSwitch, storage}},
		PortGroups: map[string][]infra.PortGroup{
			testSwitch.ID: {prodPG(10, "dvUplink1")},
			storage.ID:    {prodPG(10, "dvUplink1")},
		},
	}

	results := verify(t, fake, SpecSet{10: vlan10Spec}, Options{ExcludeSwitches: []string{"*storage*"}})

	for _, r := range results {
		if r.Switch == storage.Name {
			t.Errorf("excluded switch was tested: %+v", r)
		}
	}
	for _, c := range fake.CallsMatching("ListVlanNetworks") {
		if strings.Contains(c, storage.Name) {
			t.Errorf("excluded switch was enumerated: %s", c)
		}
	}
}

func TestLeftoverTestPortgroupNeverTested(t *testing.T) {
	// A leftover ephemeral portgroup shows up in discovery as a VLAN-tagged
	// portgroup; it must be filtered by name, not tested.
	leftover := infra.PortGroup{Name: TestNetworkPrefix + "dvs-21", VlanID: 10}
	fake := fixture(prodPG(10, "dvUplink1"), leftover)

	results := verify(t, fake, SpecSet{10: vlan10Spec}, Options{})

	if len(results) != 1 {
		t.Fatalf("leftover portgroup should be excluded, got %+v", results)
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		tx, rx int
		want   Status
	}{
		{3, 3, StatusPassed},
		{1, 1, StatusPassed},
		{3, 1, StatusPartial},
		{3, 2, StatusPartial},
		{3, 0, StatusFailed},
		{0, 0, StatusFailed},
		// Counts from a confused responder never classify as Passed.
		{0, 3, StatusFailed},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d", tt.tx, tt.rx), func(t *testing.T) {
			if got := Classify(tt.tx, tt.rx); got != tt.want {
				t.Errorf("Classify(%d, %d) = %s, want %s", tt.tx, tt.rx, got, tt.want)
			}
		})
	}
}
