package racadm

import "testing"

func TestEncode(t *testing.T) {
	tests := []struct {
		name   string
		verb   string
		flags  Flags
		params []string
		want   string
	}{
		{
			name:  "single flag",
			verb:  "setniccfg",
			flags: Flags{F("m", "server-1")},
			want:  "racadm setniccfg -m server-1",
		},
		{
			name:  "flags keep insertion order",
			verb:  "deploy",
			flags: Flags{F("u", "root"), F("p", "'secret'"), F("m", "cmc-1")},
			want:  "racadm deploy -u root -p 'secret' -m cmc-1",
		},
		{
			name:   "positional params before flags",
			verb:   "ping",
			params: []string{"10.0.0.5"},
			want:   "racadm ping 10.0.0.5",
		},
		{
			name:   "multiple params joined by single spaces",
			verb:   "racreset",
			params: []string{"hard", "-m", "server-2"},
			flags:  Flags{F("f", "now")},
			want:   "racadm racreset hard -m server-2 -f now",
		},
		{
			name:  "switch without value",
			verb:  "setniccfg",
			flags: Flags{F("m", "server-1"), F("d", "")},
			want:  "racadm setniccfg -m server-1 -d",
		},
		{
			name:  "value with spaces is not quoted",
			verb:  "setniccfg",
			flags: Flags{F("m", "switch-1"), F("s", "10.0.0.5 255.255.255.0 10.0.0.1")},
			want:  "racadm setniccfg -m switch-1 -s 10.0.0.5 255.255.255.0 10.0.0.1",
		},
		{
			name: "bare verb",
			verb: "getsysinfo",
			want: "racadm getsysinfo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.verb, tt.flags, tt.params)
			if got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
			cmd := Command{Verb: tt.verb, Flags: tt.flags, Params: tt.params}
			if cmd.String() != tt.want {
				t.Errorf("Command.String() = %q, want %q", cmd.String(), tt.want)
			}
		})
	}
}

func TestEncodeConfigSet(t *testing.T) {
	got := EncodeConfigSet("cfgUserAdmin", "cfgUserAdminUserName", "alice", Flags{F("i", "2")})
	want := "racadm config -g cfgUserAdmin -o cfgUserAdminUserName alice -i 2"
	if got != want {
		t.Errorf("EncodeConfigSet() = %q, want %q", got, want)
	}
}

func TestEncodeGetConfig(t *testing.T) {
	tests := []struct {
		group, object string
		flags         Flags
		want          string
	}{
		{"", "", nil, "racadm getconfig"},
		{"cfgLanNetworking", "", nil, "racadm getconfig -g cfgLanNetworking"},
		{"cfgUserAdmin", "cfgUserAdminUserName", Flags{F("i", "1")}, "racadm getconfig -g cfgUserAdmin -o cfgUserAdminUserName -i 1"},
		{"", "cfgNicIpAddress", nil, "racadm getconfig -o cfgNicIpAddress"},
	}
	for _, tt := range tests {
		if got := EncodeGetConfig(tt.group, tt.object, tt.flags); got != tt.want {
			t.Errorf("EncodeGetConfig(%q, %q) = %q, want %q", tt.group, tt.object, got, tt.want)
		}
	}
}

func TestFlagsWith_DoesNotAlias(t *testing.T) {
	base := make(Flags, 1, 4)
	base[0] = F("m", "server-1")
	a := base.With(F("d", ""))
	b := base.With(F("s", "10.0.0.5 255.255.255.0 10.0.0.1"))
	if a[1].Name != "d" || b[1].Name != "s" {
		t.Errorf("With aliased the backing array: a=%v b=%v", a, b)
	}
}
