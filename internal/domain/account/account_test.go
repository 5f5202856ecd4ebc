package account

import "testing"

func TestPlatformValid(t *testing.T) {
	cases := map[Platform]bool{
		PlatformMeta:   true,
		PlatformGoogle: true,
		"tiktok":       false,
		"":             false,
	}
	for p, want := range cases {
		if got := p.Valid(); got != want {
			t.Errorf("Platform(%q).Valid() = %v, want %v", p, got, want)
		}
	}
}

func TestAdAccountConnected(t *testing.T) {
	if !(AdAccount{Status: StatusConnected}).Connected() {
		t.Error("expected connected account")
	}
	if (AdAccount{Status: StatusError}).Connected() {
		t.Error("error account should not count as connected")
	}
}
