package vlantest

import (
	"encoding/csv"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/netvalid/vlanpath/pkg/util"
)

// Spec file columns. Header is required; column order is free and unknown
// columns are ignored.
const (
	colVlan     = "Vlan"
	colTestIP   = "TestIP"
	colTestMask = "TestMask"
	colTargetIP = "TargetIP"
)

// LoadSpecs reads VLAN test specs from a CSV file. A missing file is the one
// fatal configuration error of a run and unwraps to util.ErrSpecFileMissing.
// Duplicate VLAN IDs are allowed; the last row wins with a warning.
func LoadSpecs(path string) (SpecSet, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", util.ErrSpecFileMissing, path)
		}
		return nil, fmt.Errorf("opening spec file %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing spec file %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: spec file %s is empty", util.ErrInvalidConfig, path)
	}

	cols, err := headerIndex(records[0])
	if err != nil {
		return nil, fmt.Errorf("spec file %s: %w", path, err)
	}

	specs := make(SpecSet, len(records)-1)
	for i, rec := range records[1:] {
		line := i + 2 // 1-based, after header
		spec, err := parseSpecRow(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("spec file %s line %d: %w", path, line, err)
		}
		if _, dup := specs[spec.VlanID]; dup {
			util.Warnf("spec file %s line %d: duplicate VLAN %d, last row wins", path, line, spec.VlanID)
		}
		specs[spec.VlanID] = spec
	}
	return specs, nil
}

// headerIndex maps required column names to their positions, case-insensitive.
func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idx := make(map[string]int, 4)
	for _, name := range []string{colVlan, colTestIP, colTestMask, colTargetIP} {
		i, ok := cols[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", util.ErrInvalidConfig, name)
		}
		idx[name] = i
	}
	return idx, nil
}

func parseSpecRow(rec []string, cols map[string]int) (VlanTestSpec, error) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	vlanStr := field(colVlan)
	vlanID, err := strconv.Atoi(vlanStr)
	if err != nil {
		return VlanTestSpec{}, fmt.Errorf("invalid VLAN %q", vlanStr)
	}
	if vlanID < 1 || vlanID > 4094 {
		return VlanTestSpec{}, fmt.Errorf("VLAN %d out of range 1-4094", vlanID)
	}

	spec := VlanTestSpec{
		VlanID:   vlanID,
		TestIP:   field(colTestIP),
		TestMask: field(colTestMask),
		TargetIP: field(colTargetIP),
	}

	if spec.TargetIP == "" || net.ParseIP(spec.TargetIP) == nil {
		return VlanTestSpec{}, fmt.Errorf("invalid target IP %q for VLAN %d", spec.TargetIP, vlanID)
	}
	if !strings.EqualFold(spec.TestIP, DHCPSentinel) {
		if net.ParseIP(spec.TestIP) == nil {
			return VlanTestSpec{}, fmt.Errorf("invalid test IP %q for VLAN %d", spec.TestIP, vlanID)
		}
		if ip := net.ParseIP(spec.TestMask); ip == nil || ip.To4() == nil {
			return VlanTestSpec{}, fmt.Errorf("invalid test mask %q for VLAN %d", spec.TestMask, vlanID)
		}
	} else {
		spec.TestIP = DHCPSentinel
	}

	return spec, nil
}
