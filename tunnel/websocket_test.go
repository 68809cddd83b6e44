package tunnel

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tunneld/util"
)

func testWSConfig(t *testing.T) WSConfig {
	t.Helper()
	l := util.NewLogger(0)
	l.SetOutput(io.Discard)
	return WSConfig{Timeout: 100 * time.Millisecond, Logger: l}
}

func TestWSSession_ID(t *testing.T) {
	s := NewWSSession(42, Params{}, testWSConfig(t))
	if s.ID() != 42 {
		t.Errorf("ID = %d, want 42", s.ID())
	}
}

// Stop before a successful Connect must be safe: static mode registers
// sessions whose connect failed, and StopAll later reaches them.
func TestWSSession_StopBeforeConnect(t *testing.T) {
	s := NewWSSession(1, Params{}, testWSConfig(t))
	s.Stop()
	s.Stop()
}

func TestWSSession_TLSConfig(t *testing.T) {
	t.Run("no root ca", func(t *testing.T) {
		s := NewWSSession(1, Params{}, testWSConfig(t))
		cfg, err := s.tlsConfig()
		if err != nil || cfg != nil {
			t.Errorf("tlsConfig = %v, %v; want nil, nil", cfg, err)
		}
	})

	t.Run("missing root ca file", func(t *testing.T) {
		wcfg := testWSConfig(t)
		wcfg.RootCA = filepath.Join(t.TempDir(), "absent.pem")
		s := NewWSSession(1, Params{}, wcfg)
		if _, err := s.tlsConfig(); err == nil {
			t.Error("expected an error for a missing bundle")
		}
	})

	t.Run("root ca file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ca.pem")
		if err := os.WriteFile(path, []byte(testCAPEM), 0o600); err != nil {
			t.Fatal(err)
		}
		wcfg := testWSConfig(t)
		wcfg.RootCA = path
		s := NewWSSession(1, Params{}, wcfg)
		cfg, err := s.tlsConfig()
		if err != nil {
			t.Fatal(err)
		}
		if cfg == nil || cfg.RootCAs == nil {
			t.Error("expected a populated cert pool")
		}
	})
}

// A self-signed certificate for pool-loading tests only.
const testCAPEM = `-----BEGIN CERTIFICATE-----
MIIBhTCCASugAwIBAgIQIRi6zePL6mKjOipn+dNuaTAKBggqhkjOPQQDAjASMRAw
DgYDVQQKEwdBY21lIENvMB4XDTE3MTAyMDE5NDMwNloXDTE4MTAyMDE5NDMwNlow
EjEQMA4GA1UEChMHQWNtZSBDbzBZMBMGByqGSM49AgEGCCqGSM49AwEHA0IABD0d
7VNhbWvZLWPuj/RtHFjvtJBEwOkhbN/BnnE8rnZR8+sbwnc/KhCk3FhnpHZnQz7B
5aETbbIgmuvewdjvSBSjYzBhMA4GA1UdDwEB/wQEAwICpDATBgNVHSUEDDAKBggr
BgEFBQcDATAPBgNVHRMBAf8EBTADAQH/MCkGA1UdEQQiMCCCDmxvY2FsaG9zdDo1
NDUzgg4xMjcuMC4wLjE6NTQ1MzAKBggqhkjOPQQDAgNIADBFAiEA2zpJEPQyz6/l
Wf86aX6PepsntZv2GYlA5UpabfT2EZICICpJ5h/iI+i341gBmLiAFQOyTDT+/wQc
6MF9+Yw1Yy0t
-----END CERTIFICATE-----
`
