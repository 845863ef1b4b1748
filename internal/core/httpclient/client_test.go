package httpclient

import (
	"testing"
	"time"
)

func TestNewOutbound_Timeout(t *testing.T) {
	if c := NewOutbound(0); c.Timeout != DefaultTimeout {
		t.Fatalf("timeout=%v want %v", c.Timeout, DefaultTimeout)
	}
	if c := NewOutbound(5 * time.Second); c.Timeout != 5*time.Second {
		t.Fatalf("timeout=%v", c.Timeout)
	}
}
