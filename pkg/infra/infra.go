// Package infra defines the narrow infrastructure capability set the VLAN
// path verifier consumes: switch and portgroup discovery, ephemeral test
// portgroup/adapter lifecycle, uplink teaming policy, and ICMP probing.
//
// Implementations own all protocol detail (vCenter SOAP, ESXi SSH). The
// verifier never talks to the platform directly.
package infra

import "context"

// SwitchDescriptor identifies a virtual switch discovered on a host.
// ID is stable across runs (for distributed switches, the DVS UUID) so that
// names derived from it are deterministic.
type SwitchDescriptor struct {
	ID   string
	Name string
}

// UplinkPolicy is the assignment of physical uplinks to teaming roles on a
// portgroup. Uplinks in none of the three lists do not exist on the switch.
type UplinkPolicy struct {
	Active  []string
	Standby []string
	Unused  []string
}

// PolicyUpdate is a partial teaming policy write. A nil slice leaves that
// role unchanged; a non-nil empty slice clears it.
type PolicyUpdate struct {
	Active  []string
	Standby []string
	Unused  []string
}

// PortGroup is a VLAN-tagged production portgroup on a switch. Its teaming
// policy is the template the ephemeral test portgroup must mirror.
type PortGroup struct {
	Name   string
	VlanID int
	Policy UplinkPolicy
}

// NetworkRef identifies a test portgroup created (or adopted) by
// GetOrCreateTestNetwork. ID is implementation-specific (for vSphere, the
// portgroup key).
type NetworkRef struct {
	ID   string
	Name string
}

// AdapterRef identifies a test adapter. Device is the platform device name
// (e.g. "vmk2"), used as the probe source interface.
type AdapterRef struct {
	Device string
}

// ProbeSummary reports the outcome of one ICMP burst.
type ProbeSummary struct {
	Transmitted int
	Received    int
}

// Client is the infrastructure capability set consumed by the verifier.
//
// All calls take a context; the probe call is the only genuinely blocking
// operation and must honor context deadlines. Implementations are not
// required to be safe for concurrent use against the same host — the
// verifier is strictly sequential per host.
type Client interface {
	// ListSwitches enumerates the virtual switches attached to host.
	ListSwitches(ctx context.Context, host string) ([]SwitchDescriptor, error)

	// ListVlanNetworks enumerates VLAN-tagged portgroups on sw, with their
	// current teaming policy. vlanFilter restricts to a single VLAN when
	// nonzero.
	ListVlanNetworks(ctx context.Context, host string, sw SwitchDescriptor, vlanFilter int) ([]PortGroup, error)

	// GetOrCreateTestNetwork returns the portgroup named name on sw,
	// creating it if absent. A leftover portgroup from a prior run is
	// adopted, not recreated.
	GetOrCreateTestNetwork(ctx context.Context, sw SwitchDescriptor, name string) (NetworkRef, error)

	// SetVlan retags network to vlanID.
	SetVlan(ctx context.Context, network NetworkRef, vlanID int) error

	// GetUplinkPolicy reads the current teaming policy of network.
	GetUplinkPolicy(ctx context.Context, network NetworkRef) (UplinkPolicy, error)

	// SetUplinkPolicy applies a partial teaming policy update to network.
	SetUplinkPolicy(ctx context.Context, network NetworkRef, update PolicyUpdate) error

	// GetOrCreateTestAdapter returns the test adapter on host bound to
	// network, creating it if absent.
	GetOrCreateTestAdapter(ctx context.Context, host string, sw SwitchDescriptor, network NetworkRef) (AdapterRef, error)

	// ConfigureStaticAddress assigns ip/mask to adapter.
	ConfigureStaticAddress(ctx context.Context, host string, adapter AdapterRef, ip, mask string) error

	// ConfigureDHCP requests a dynamic lease on adapter.
	ConfigureDHCP(ctx context.Context, host string, adapter AdapterRef) error

	// DestroyAdapter removes adapter from host.
	DestroyAdapter(ctx context.Context, host string, adapter AdapterRef) error

	// DestroyNetwork removes a test portgroup. Only called when the caller
	// opts into full cleanup.
	DestroyNetwork(ctx context.Context, network NetworkRef) error

	// Probe sends a burst of count ICMP packets from adapter to targetIP and
	// reports packet counts. A nil error with zero counts is a valid result
	// (total loss); an error means no summary was produced at all.
	Probe(ctx context.Context, host string, adapter AdapterRef, targetIP string, count int) (ProbeSummary, error)
}
