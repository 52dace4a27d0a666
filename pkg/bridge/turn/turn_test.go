package turn

import "testing"

func TestInterrupt_FiresOncePerResponse(t *testing.T) {
	c := NewController()
	c.BeginResponse()

	clear, cancel := c.Interrupt()
	if !clear || !cancel {
		t.Fatalf("first interrupt: clear=%v cancel=%v", clear, cancel)
	}

	// Repeated speech-start signals while the cancel is pending are no-ops.
	for i := 0; i < 3; i++ {
		clear, cancel = c.Interrupt()
		if clear || cancel {
			t.Fatalf("repeat interrupt %d: clear=%v cancel=%v", i, clear, cancel)
		}
	}
}

func TestInterrupt_WhileIdleIsNoop(t *testing.T) {
	c := NewController()
	if clear, cancel := c.Interrupt(); clear || cancel {
		t.Fatalf("idle interrupt: clear=%v cancel=%v", clear, cancel)
	}
	if c.State() != Idle {
		t.Fatalf("state=%q", c.State())
	}
}

func TestAckCancel_ReturnsToIdle(t *testing.T) {
	c := NewController()
	c.BeginResponse()
	c.Interrupt()
	if c.State() != UserInterrupting {
		t.Fatalf("state=%q", c.State())
	}
	c.AckCancel()
	if c.State() != Idle {
		t.Fatalf("state=%q", c.State())
	}
}

func TestNewResponseSupersedesPendingInterrupt(t *testing.T) {
	c := NewController()
	c.BeginResponse()
	c.Interrupt()

	// Next response starts before the cancel ack arrives.
	c.BeginResponse()
	if c.State() != AIResponding {
		t.Fatalf("state=%q", c.State())
	}

	// The fresh response is interruptible again.
	if clear, cancel := c.Interrupt(); !clear || !cancel {
		t.Fatalf("clear=%v cancel=%v", clear, cancel)
	}
}

func TestCompleteResponse_SettlesRaceWithInterrupt(t *testing.T) {
	c := NewController()
	c.BeginResponse()
	c.Interrupt()
	c.CompleteResponse()
	if c.State() != Idle {
		t.Fatalf("state=%q", c.State())
	}
}
