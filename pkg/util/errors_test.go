package util

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestProvisioningError(t *testing.T) {
	base := fmt.Errorf("permission denied")
	err := NewProvisioningError("create-portgroup", "vlan-testing-psscript-dvs-21", base)

	msg := err.Error()
	if !strings.Contains(msg, "create-portgroup") {
		t.Errorf("Error message should contain stage: %s", msg)
	}
	if !strings.Contains(msg, "vlan-testing-psscript-dvs-21") {
		t.Errorf("Error message should contain resource: %s", msg)
	}
	if !strings.Contains(msg, "permission denied") {
		t.Errorf("Error message should contain cause: %s", msg)
	}

	if !errors.Is(err, ErrProvisioningFailed) {
		t.Errorf("ProvisioningError should unwrap to ErrProvisioningFailed")
	}
}

func TestDiscoveryError(t *testing.T) {
	err := NewDiscoveryError("esx01.lab", "switches", fmt.Errorf("host not found"))

	msg := err.Error()
	if !strings.Contains(msg, "esx01.lab") {
		t.Errorf("Error message should contain host: %s", msg)
	}
	if !strings.Contains(msg, "switches") {
		t.Errorf("Error message should contain object: %s", msg)
	}

	if !errors.Is(err, ErrDiscoveryFailed) {
		t.Errorf("DiscoveryError should unwrap to ErrDiscoveryFailed")
	}
}
