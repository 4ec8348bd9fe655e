package vlantest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/netvalid/vlanpath/pkg/util"
)

func writeSpecFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vlan-specs.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing spec file: %v", err)
	}
	return path
}

func TestLoadSpecs(t *testing.T) {
	path := writeSpecFile(t, `Vlan,TestIP,TestMask,TargetIP
10,10.0.10.5,255.255.255.0,10.0.10.1
20,dhcp,,10.0.20.1
`)
	specs, err := LoadSpecs(path)
	if err != nil {
		t.Fatalf("LoadSpecs: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}

	s, ok := specs.Lookup(10)
	if !ok {
		t.Fatal("VLAN 10 spec missing")
	}
	if s.TestIP != "10.0.10.5" || s.TestMask != "255.255.255.0" || s.TargetIP != "10.0.10.1" {
		t.Errorf("VLAN 10 spec = %+v", s)
	}
	if s.DHCP() {
		t.Error("static spec should not report DHCP")
	}

	d, ok := specs.Lookup(20)
	if !ok {
		t.Fatal("VLAN 20 spec missing")
	}
	if !d.DHCP() {
		t.Errorf("VLAN 20 should be DHCP: %+v", d)
	}
}

func TestLoadSpecsMissingFileIsFatal(t *testing.T) {
	_, err := LoadSpecs(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, util.ErrSpecFileMissing) {
		t.Errorf("expected ErrSpecFileMissing, got %v", err)
	}
}

func TestLoadSpecsColumnOrderFree(t *testing.T) {
	path := writeSpecFile(t, `TargetIP,Vlan,TestMask,TestIP,Comment
10.0.10.1,10,255.255.255.0,10.0.10.5,ignored
`)
	specs, err := LoadSpecs(path)
	if err != nil {
		t.Fatalf("LoadSpecs: %v", err)
	}
	if s := specs[10]; s.TargetIP != "10.0.10.1" || s.TestIP != "10.0.10.5" {
		t.Errorf("spec = %+v", s)
	}
}

func TestLoadSpecsDuplicateLastWins(t *testing.T) {
	path := writeSpecFile(t, `Vlan,TestIP,TestMask,TargetIP
10,10.0.10.5,255.255.255.0,10.0.10.1
10,10.0.10.6,255.255.255.0,10.0.10.1
`)
	specs, err := LoadSpecs(path)
	if err != nil {
		t.Fatalf("LoadSpecs: %v", err)
	}
	if s := specs[10]; s.TestIP != "10.0.10.6" {
		t.Errorf("last duplicate should win, got %+v", s)
	}
}

func TestLoadSpecsRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{"bad vlan", "abc,10.0.10.5,255.255.255.0,10.0.10.1"},
		{"vlan out of range", "5000,10.0.10.5,255.255.255.0,10.0.10.1"},
		{"bad test ip", "10,not-an-ip,255.255.255.0,10.0.10.1"},
		{"bad mask", "10,10.0.10.5,bogus,10.0.10.1"},
		{"missing target", "10,10.0.10.5,255.255.255.0,"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSpecFile(t, "Vlan,TestIP,TestMask,TargetIP\n"+tt.row+"\n")
			if _, err := LoadSpecs(path); err == nil {
				t.Errorf("expected error for row %q", tt.row)
			}
		})
	}
}

func TestLoadSpecsMissingColumn(t *testing.T) {
	path := writeSpecFile(t, "Vlan,TestIP,TargetIP\n10,10.0.10.5,10.0.10.1\n")
	if _, err := LoadSpecs(path); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for missing column, got %v", err)
	}
}
