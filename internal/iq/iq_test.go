package iq

import "testing"

func TestParseWireFormat(t *testing.T) {
	tests := []struct {
		name   string
		format WireFormat
	}{
		{"cbyte", PackedByte},
		{"c4bits", Packed4Bit},
		{"cfloat", PackedFloat},
	}
	for _, tt := range tests {
		got, err := ParseWireFormat(tt.name)
		if err != nil {
			t.Errorf("ParseWireFormat(%q) failed: %v", tt.name, err)
			continue
		}
		if got != tt.format {
			t.Errorf("ParseWireFormat(%q) = %v, want %v", tt.name, got, tt.format)
		}
	}

	for _, name := range []string{"", "cshort", "CBYTE", "cbyte "} {
		if _, err := ParseWireFormat(name); err == nil {
			t.Errorf("ParseWireFormat(%q) succeeded, want error", name)
		}
	}
}

func TestWireFormat_BytesPerSample(t *testing.T) {
	tests := []struct {
		format WireFormat
		bytes  int
	}{
		{PackedByte, 2},
		{Packed4Bit, 1},
		{PackedFloat, 8},
		{WireFormat(0), 0},
		{WireFormat(99), 0},
	}
	for _, tt := range tests {
		if got := tt.format.BytesPerSample(); got != tt.bytes {
			t.Errorf("%v.BytesPerSample() = %d, want %d", tt.format, got, tt.bytes)
		}
	}
}

func TestWireFormat_String(t *testing.T) {
	tests := []struct {
		format WireFormat
		name   string
	}{
		{PackedByte, "cbyte"},
		{Packed4Bit, "c4bits"},
		{PackedFloat, "cfloat"},
		{WireFormat(0), "WireFormat(0)"},
	}
	for _, tt := range tests {
		if got := tt.format.String(); got != tt.name {
			t.Errorf("%v.String() = %q, want %q", int(tt.format), got, tt.name)
		}
	}
}

func TestWireFormat_Valid(t *testing.T) {
	for _, f := range []WireFormat{PackedByte, Packed4Bit, PackedFloat} {
		if !f.Valid() {
			t.Errorf("%v.Valid() = false, want true", f)
		}
	}
	for _, f := range []WireFormat{0, 4, 99} {
		if f.Valid() {
			t.Errorf("WireFormat(%d).Valid() = true, want false", int(f))
		}
	}
}

func TestAllocFrames(t *testing.T) {
	frames := AllocFrames(3, 16)
	if len(frames) != 3 {
		t.Fatalf("channel count = %d, want 3", len(frames))
	}
	for ch, frame := range frames {
		if len(frame) != 16 {
			t.Errorf("channel %d length = %d, want 16", ch, len(frame))
		}
	}
}
