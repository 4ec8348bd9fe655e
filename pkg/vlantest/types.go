// Package vlantest verifies VLAN reachability over every physical uplink of
// the virtual switches on a host. For each discovered (switch, VLAN) pair it
// provisions an ephemeral test portgroup and adapter, isolates each uplink in
// turn, sends an ICMP burst to a per-VLAN target, and emits one result row
// per uplink.
package vlantest

// DHCPSentinel in a spec's TestIP selects dynamic addressing for the test
// adapter instead of a static assignment.
const DHCPSentinel = "dhcp"

// TestNetworkPrefix is the name prefix of ephemeral test portgroups. The full
// name is TestNetworkPrefix + switch ID, so repeated runs on the same switch
// reuse the same portgroup and portgroups never collide across switches.
const TestNetworkPrefix = "vlan-testing-psscript-"

// Fixed result messages, kept stable for downstream audit tooling.
const (
	MsgNoSpec      = "No vlan info in CSV file."
	MsgNoProbeData = "No results from network diagnostic ping."
)

// VlanTestSpec declares how one VLAN is tested: the source address for the
// ephemeral adapter and a target known to answer only on that VLAN.
type VlanTestSpec struct {
	VlanID   int
	TestIP   string // static source address, or DHCPSentinel
	TestMask string // ignored when TestIP is DHCPSentinel
	TargetIP string
}

// DHCP reports whether this spec requests a dynamic lease.
func (s VlanTestSpec) DHCP() bool {
	return s.TestIP == DHCPSentinel
}

// SpecSet is the loaded spec file, keyed by VLAN ID.
type SpecSet map[int]VlanTestSpec

// Lookup returns the spec for vlanID, if any.
func (ss SpecSet) Lookup(vlanID int) (VlanTestSpec, bool) {
	s, ok := ss[vlanID]
	return s, ok
}

// Status classifies the outcome of one uplink test.
type Status string

const (
	StatusPassed  Status = "Passed"  // every probe answered
	StatusPartial Status = "Partial" // some probes answered
	StatusFailed  Status = "Failed"  // nothing answered, or the test could not run
	StatusNoIP    Status = "NoIP"    // no spec for this VLAN; test skipped
)

// Classify derives a status from probe packet counts. It is a pure function:
// Passed iff all transmitted packets came back (and something was sent),
// Partial iff some did, Failed otherwise.
func Classify(transmitted, received int) Status {
	switch {
	case transmitted > 0 && received == transmitted:
		return StatusPassed
	case received > 0 && received < transmitted:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// UplinkTestResult is one row of output: the outcome of testing one VLAN over
// one uplink of one switch on one host. NoIP rows have no uplink and no
// packet counts.
type UplinkTestResult struct {
	Host        string
	Switch      string
	Uplink      string
	VlanID      int
	Status      Status
	Transmitted int
	Received    int
	Message     string
}
