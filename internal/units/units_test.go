package units

import "testing"

func TestIsValid(t *testing.T) {
	for _, unit := range ValidUnits {
		if !IsValid(unit) {
			t.Errorf("IsValid(%q) = false, want true", unit)
		}
	}
	for _, unit := range []string{"", "sec", "hz", "gauss"} {
		if IsValid(unit) {
			t.Errorf("IsValid(%q) = true, want false", unit)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		value float64
		unit  string
		want  string
	}{
		{0, Second, "0 s"},
		{2.5e-6, Second, "2.5 us"},
		{1.4e9, Hertz, "1.4 GHz"},
		{2.87e9, Hertz, "2.87 GHz"},
		{25e9, Hertz, "25 GHz"},
		{-3e-3, Volt, "-3 mV"},
		{5e-13, Tesla, "0.5 pT"},
		{180, Degree, "180 deg"},
		{1, Second, "1 s"},
	}
	for _, tt := range tests {
		if got := Format(tt.value, tt.unit); got != tt.want {
			t.Errorf("Format(%g, %q) = %q, want %q", tt.value, tt.unit, got, tt.want)
		}
	}
}
