package util

import (
	"reflect"
	"testing"
)

func TestSameStringSet(t *testing.T) {
	tests := []struct {
		name string
		a    []string
		b    []string
		want bool
	}{
		{"both empty", nil, nil, true},
		{"same order", []string{"dvUplink1", "dvUplink2"}, []string{"dvUplink1", "dvUplink2"}, true},
		{"different order", []string{"dvUplink2", "dvUplink1"}, []string{"dvUplink1", "dvUplink2"}, true},
		{"different elements", []string{"dvUplink1"}, []string{"dvUplink2"}, false},
		{"subset", []string{"dvUplink1"}, []string{"dvUplink1", "dvUplink2"}, false},
		{"superset", []string{"dvUplink1", "dvUplink2"}, []string{"dvUplink1"}, false},
		{"duplicates ignored", []string{"dvUplink1", "dvUplink1"}, []string{"dvUplink1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameStringSet(tt.a, tt.b); got != tt.want {
				t.Errorf("SameStringSet(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestWithoutString(t *testing.T) {
	got := WithoutString([]string{"dvUplink1", "dvUplink2", "dvUplink3"}, "dvUplink2")
	want := []string{"dvUplink1", "dvUplink3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("WithoutString = %v, want %v", got, want)
	}

	// Removing an absent value leaves the list unchanged
	got = WithoutString([]string{"dvUplink1"}, "dvUplink9")
	if !reflect.DeepEqual(got, []string{"dvUplink1"}) {
		t.Errorf("WithoutString with absent value = %v", got)
	}
}

func TestSplitCommaSeparated(t *testing.T) {
	got := SplitCommaSeparated(" vmk-storage , iscsi-* ")
	want := []string{"vmk-storage", "iscsi-*"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitCommaSeparated = %v, want %v", got, want)
	}
	if SplitCommaSeparated("") != nil {
		t.Errorf("SplitCommaSeparated(\"\") should be nil")
	}
}

func TestSanitizeName(t *testing.T) {
	if got := SanitizeName("dvs 21/a"); got != "dvs-21-a" {
		t.Errorf("SanitizeName = %q, want %q", got, "dvs-21-a")
	}
}
