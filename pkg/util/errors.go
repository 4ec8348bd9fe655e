// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
)

// Sentinel errors for failure classification
var (
	ErrSpecFileMissing    = errors.New("vlan spec file missing")
	ErrNotConnected       = errors.New("not connected to vCenter")
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrDiscoveryFailed    = errors.New("discovery failed")
	ErrProvisioningFailed = errors.New("provisioning failed")
	ErrProbeFailed        = errors.New("probe returned no results")
)

// ProvisioningError wraps a failure while creating or reconfiguring an
// ephemeral test portgroup or adapter. The verifier converts these into
// Failed result rows rather than aborting the host.
type ProvisioningError struct {
	Stage    string // e.g. "create-portgroup", "set-vlan", "configure-address"
	Resource string // portgroup or adapter name
	Err      error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning %s on %s: %v", e.Stage, e.Resource, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return ErrProvisioningFailed
}

// NewProvisioningError creates a provisioning error
func NewProvisioningError(stage, resource string, err error) *ProvisioningError {
	return &ProvisioningError{Stage: stage, Resource: resource, Err: err}
}

// DiscoveryError wraps a failure while enumerating hosts, switches, or
// portgroups. Discovery failures skip the host and are logged, not fatal.
type DiscoveryError struct {
	Host   string
	Object string // what was being looked up, e.g. "switches", "portgroups"
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovering %s on %s: %v", e.Object, e.Host, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return ErrDiscoveryFailed
}

// NewDiscoveryError creates a discovery error
func NewDiscoveryError(host, object string, err error) *DiscoveryError {
	return &DiscoveryError{Host: host, Object: object, Err: err}
}
