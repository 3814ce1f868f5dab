package stlink

import "testing"

func TestVersionHasTrace(t *testing.T) {
	tests := []struct {
		v    version
		want bool
	}{
		{version{major: 1, jtag: 11}, false},
		{version{major: 2, jtag: 12}, false},
		{version{major: 2, jtag: 13}, true},
		{version{major: 2, jtag: 37}, true},
		{version{major: 3, jtag: 1}, true},
	}

	for _, tt := range tests {
		if got := tt.v.hasTrace(); got != tt.want {
			t.Errorf("%s hasTrace = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestVersionString(t *testing.T) {
	v := version{major: 2, jtag: 37, swim: 7}
	if got := v.String(); got != "V2J37S7" {
		t.Errorf("String = %q, want %q", got, "V2J37S7")
	}

	v3 := version{major: 3, jtag: 6}
	if got := v3.String(); got != "V3J6" {
		t.Errorf("String = %q, want %q", got, "V3J6")
	}
}
