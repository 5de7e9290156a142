package config

import "testing"

func TestParseEnvLine(t *testing.T) {
	cases := []struct {
		line    string
		wantKey string
		wantVal string
		wantOK  bool
	}{
		{"FLOW_LOG_LEVEL=debug", "FLOW_LOG_LEVEL", "debug", true},
		{"  FLOW_LOG_LEVEL = debug  ", "FLOW_LOG_LEVEL", "debug", true},
		{"export FLOW_LOG_LEVEL=debug", "FLOW_LOG_LEVEL", "debug", true},
		{`FLOW_LOG_LEVEL="debug"`, "FLOW_LOG_LEVEL", "debug", true},
		{"FLOW_LOG_LEVEL='debug'", "FLOW_LOG_LEVEL", "debug", true},
		{"# a comment", "", "", false},
		{"", "", "", false},
		{"not a valid line", "", "", false},
		{"=missing-key", "", "", false},
	}

	for _, c := range cases {
		key, val, ok := parseEnvLine(c.line)
		if ok != c.wantOK || key != c.wantKey || val != c.wantVal {
			t.Fatalf("parseEnvLine(%q) = (%q, %q, %v), want (%q, %q, %v)",
				c.line, key, val, ok, c.wantKey, c.wantVal, c.wantOK)
		}
	}
}

func TestLoadRequiresBindAddr(t *testing.T) {
	if _, err := Load(nil); err != ErrMissingAddr {
		t.Fatalf("expected ErrMissingAddr for no args, got %v", err)
	}
	if _, err := Load([]string{"  "}); err != ErrMissingAddr {
		t.Fatalf("expected ErrMissingAddr for blank arg, got %v", err)
	}
}

func TestLoadResolvesBindAddrAndLogLevelEnv(t *testing.T) {
	cfg, err := Load([]string{":9090"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("expected bind addr :9090, got %q", cfg.BindAddr)
	}
	if cfg.LogLevelEnv != defaultLogLevelEnv {
		t.Fatalf("expected log level env %q, got %q", defaultLogLevelEnv, cfg.LogLevelEnv)
	}
}
