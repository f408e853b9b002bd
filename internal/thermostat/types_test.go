package thermostat

import (
	"testing"
)

func TestKindFromTypeID(t *testing.T) {
	tests := []struct {
		name string
		id   int
		want Kind
	}{
		{"heat pump is master", 5, KindMaster},
		{"dependent unit is slave", 7, KindSlave},
		{"ordinary room unit", 1, KindStandalone},
		{"unknown id defaults to standalone", 99, KindStandalone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindFromTypeID(tt.id); got != tt.want {
				t.Errorf("KindFromTypeID(%d) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestKindValid(t *testing.T) {
	for _, k := range []Kind{KindStandalone, KindMaster, KindSlave} {
		if !k.Valid() {
			t.Errorf("Kind(%q).Valid() = false, want true", k)
		}
	}
	if Kind("pump").Valid() {
		t.Error(`Kind("pump").Valid() = true, want false`)
	}
}

func TestEndpointAddr(t *testing.T) {
	ep := Endpoint{IPAddress: "10.0.4.21", Port: 5000}
	if got, want := ep.Addr(), "10.0.4.21:5000"; got != want {
		t.Errorf("Addr() = %q, want %q", got, want)
	}
}

func TestChangeSetInt(t *testing.T) {
	cs := ChangeSet{
		Attributes: map[string]any{
			"set_temp":    22,
			"sensitivity": 1.5,
			"enab_lock":   true,
			"relay_opera": false,
			"room_name":   "kitchen",
		},
	}

	tests := []struct {
		name   string
		attr   string
		want   int
		wantOK bool
	}{
		{"plain int", "set_temp", 22, true},
		{"decimal truncates", "sensitivity", 1, true},
		{"bool true", "enab_lock", 1, true},
		{"bool false", "relay_opera", 0, true},
		{"non-numeric", "room_name", 0, false},
		{"absent", "mode", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cs.Int(tt.attr)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Int(%q) = (%d, %v), want (%d, %v)", tt.attr, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestApplyChangeSet(t *testing.T) {
	base := Settings{"mode": 0, "set_temp": 20, "boiler_duration": 30}
	cs := ChangeSet{
		Attributes: map[string]any{
			"mode":      2,
			"enab_lock": true,
			"room_name": "lounge", // not a protocol attribute, must be ignored
		},
	}

	got := ApplyChangeSet(base, cs)

	if got["mode"] != 2 {
		t.Errorf("mode = %d, want 2", got["mode"])
	}
	if got["enab_lock"] != 1 {
		t.Errorf("enab_lock = %d, want 1", got["enab_lock"])
	}
	if got["set_temp"] != 20 || got["boiler_duration"] != 30 {
		t.Error("attributes absent from the change-set must be preserved")
	}
	if _, ok := got["room_name"]; ok {
		t.Error("non-protocol attribute leaked into settings")
	}

	// Original snapshot untouched.
	if base["mode"] != 0 {
		t.Errorf("ApplyChangeSet mutated its input: mode = %d", base["mode"])
	}
}

func TestSettingsBlockValues(t *testing.T) {
	s := Settings{
		"mode":      1,  // settings-block attribute
		"set_temp":  22, // individual-only register
		"enab_lock": 1,  // settings-block attribute
	}

	got := SettingsBlockValues(s)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (%v)", len(got), got)
	}
	if got["mode"] != 1 || got["enab_lock"] != 1 {
		t.Errorf("unexpected block values: %v", got)
	}
}
