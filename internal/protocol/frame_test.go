package protocol

import (
	"bytes"
	"testing"
)

func TestEncodeIndividual(t *testing.T) {
	tests := []struct {
		name     string
		register byte
		value    int
		wantHex  string
	}{
		{
			name:     "set_temp 22",
			register: 10,
			value:    22,
			wantHex:  "F1F2A10A16000000A1FEFF",
		},
		{
			name:     "mode 1",
			register: 20,
			value:    1,
			wantHex:  "F1F2A1140100000096FEFF",
		},
		{
			name:     "zero register zero value",
			register: 0,
			value:    0,
			wantHex:  "F1F2A1000000000081FEFF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeIndividual(tt.register, tt.value)

			if len(got) != IndividualFrameLen {
				t.Fatalf("frame length = %d, want %d", len(got), IndividualFrameLen)
			}
			if got.Hex() != tt.wantHex {
				t.Errorf("Hex() = %s, want %s", got.Hex(), tt.wantHex)
			}
			if got[individualChecksumPos] != Checksum(got, individualChecksumPos) {
				t.Errorf("checksum byte = %02X, want %02X",
					got[individualChecksumPos], Checksum(got, individualChecksumPos))
			}
		})
	}
}

func TestEncodeIndividualIdempotent(t *testing.T) {
	a := EncodeIndividual(26, 2)
	b := EncodeIndividual(26, 2)
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Errorf("encoding the same pair twice differs: %s vs %s", a.Hex(), b.Hex())
	}
}

func TestChecksumCoversWholeFrame(t *testing.T) {
	// Every valid register/value pair must satisfy the additive property:
	// checksum byte == sum of the other 10 bytes mod 256.
	for _, name := range Registers.Names() {
		code, err := Registers.Resolve(name)
		if err != nil {
			t.Fatalf("Resolve(%q) unexpected error: %v", name, err)
		}
		for _, value := range []int{0, 1, 22, 127, 255} {
			f := EncodeIndividual(code, value)

			var sum int
			for i, b := range f {
				if i == individualChecksumPos {
					continue
				}
				sum += int(b)
			}
			if want := byte(sum % 256); f[individualChecksumPos] != want {
				t.Fatalf("%s=%d: checksum = %02X, want %02X", name, value, f[individualChecksumPos], want)
			}
		}
	}
}

func TestEncodeReadAll(t *testing.T) {
	f := EncodeReadAll()

	if len(f) != IndividualFrameLen {
		t.Fatalf("frame length = %d, want %d", len(f), IndividualFrameLen)
	}
	if f[2] != cmdReadAll {
		t.Errorf("command byte = %02X, want %02X", f[2], cmdReadAll)
	}
	if got, want := f.Hex(), "F1F2B1000000000091FEFF"; got != want {
		t.Errorf("Hex() = %s, want %s", got, want)
	}
}

func TestEncodeOffsetValue(t *testing.T) {
	tests := []struct {
		name string
		in   OffsetValue
		want byte
	}{
		{"positive two degrees", OffsetValue{Sign: false, Magnitude: 2}, 0x02},
		{"negative two degrees", OffsetValue{Sign: true, Magnitude: 2}, 0x82},
		{"zero", OffsetValue{}, 0x00},
		{"magnitude clamped to seven bits", OffsetValue{Sign: false, Magnitude: 0x85}, 0x05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Encode(); got != tt.want {
				t.Errorf("Encode() = %02X, want %02X", got, tt.want)
			}
		})
	}

	f := EncodeOffset(OffsetValue{Sign: true, Magnitude: 3})
	if f[individualRegisterPos] != RegisterOffsetTemp {
		t.Errorf("register byte = %02X, want %02X", f[individualRegisterPos], RegisterOffsetTemp)
	}
	if f[individualValuePos] != 0x83 {
		t.Errorf("value byte = %02X, want 83", f[individualValuePos])
	}
}

func TestEncodeSettings(t *testing.T) {
	values := map[string]int{
		"mode":            2,
		"boiler_duration": 90,
		"differential":    3,
		"enab_lock":       1,
	}

	f, err := EncodeSettings(values)
	if err != nil {
		t.Fatalf("EncodeSettings() unexpected error: %v", err)
	}

	if len(f) != SettingsFrameLen {
		t.Fatalf("frame length = %d, want %d", len(f), SettingsFrameLen)
	}
	if f[0] != header0 || f[1] != header1 || f[2] != cmdSettings {
		t.Errorf("header = % 02X, want F1 F2 03", f[:3])
	}
	if f[SettingsFrameLen-2] != footer0 || f[SettingsFrameLen-1] != footer1 {
		t.Errorf("footer = % 02X, want FE FF", f[SettingsFrameLen-2:])
	}

	// Known attributes land at their reserved offsets.
	if f[3] != 2 {
		t.Errorf("mode slot = %d, want 2", f[3])
	}
	if f[11] != 90 {
		t.Errorf("boiler_duration slot = %d, want 90", f[11])
	}
	if f[9] != 3 {
		t.Errorf("differential slot = %d, want 3", f[9])
	}
	if f[25] != 1 {
		t.Errorf("enab_lock slot = %d, want 1", f[25])
	}

	// Absent offsets stay zero.
	if f[4] != 0 {
		t.Errorf("sensors_mode slot = %d, want 0", f[4])
	}

	if f[settingsChecksumPos] != Checksum(f, settingsChecksumPos) {
		t.Errorf("checksum byte = %02X, want %02X",
			f[settingsChecksumPos], Checksum(f, settingsChecksumPos))
	}
}

func TestEncodeSettingsRouterMACForcedZero(t *testing.T) {
	f, err := EncodeSettings(map[string]int{"home_router_mac_address": 0xAB})
	if err != nil {
		t.Fatalf("EncodeSettings() unexpected error: %v", err)
	}
	if f[settingsRouterMACPos] != 0x00 {
		t.Errorf("router MAC slot = %02X, want 00", f[settingsRouterMACPos])
	}
}

func TestEncodeSettingsOrderIndependent(t *testing.T) {
	// Maps don't guarantee iteration order, so exercise the same logical
	// input many times; every encoding must be byte-identical.
	values := map[string]int{
		"mode":           1,
		"sensors_mode":   2,
		"relay_limit":    6,
		"boost":          180,
		"cool_heat_mode": 1,
	}

	first, err := EncodeSettings(values)
	if err != nil {
		t.Fatalf("EncodeSettings() unexpected error: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := EncodeSettings(values)
		if err != nil {
			t.Fatalf("EncodeSettings() unexpected error: %v", err)
		}
		if !bytes.Equal(first.Bytes(), again.Bytes()) {
			t.Fatalf("encoding differs across runs: %s vs %s", first.Hex(), again.Hex())
		}
	}
}

func TestEncodeSettingsUnknownName(t *testing.T) {
	_, err := EncodeSettings(map[string]int{"set_temp": 22})
	if err == nil {
		t.Fatal("EncodeSettings() with non-settings attribute expected error, got nil")
	}
}

func TestFrameFromHex(t *testing.T) {
	original := EncodeIndividual(10, 22)

	restored, err := FrameFromHex(original.Hex())
	if err != nil {
		t.Fatalf("FrameFromHex() unexpected error: %v", err)
	}
	if !bytes.Equal(original.Bytes(), restored.Bytes()) {
		t.Errorf("round-trip mismatch: %s vs %s", original.Hex(), restored.Hex())
	}

	if _, err := FrameFromHex("F1F2"); err == nil {
		t.Error("FrameFromHex() with truncated input expected error, got nil")
	}
	if _, err := FrameFromHex("not-hex"); err == nil {
		t.Error("FrameFromHex() with invalid hex expected error, got nil")
	}
}
