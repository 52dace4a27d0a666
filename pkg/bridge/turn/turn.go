// Package turn tracks who holds the floor on a call. The controller is a
// plain state machine driven by the call's dispatch loop; serialization comes
// from the loop, so there is no locking here.
package turn

// State is the current floor holder.
type State string

const (
	// Idle: nobody is speaking over the AI; no response in flight.
	Idle State = "idle"
	// AIResponding: a response is streaming toward the caller.
	AIResponding State = "ai_responding"
	// UserInterrupting: caller speech arrived mid-response; the interrupt
	// has been emitted and the cancel acknowledgment is pending.
	UserInterrupting State = "user_interrupting"
)

// Controller decides when caller speech must cut off AI playback. Interrupt
// reports the two actions (clear buffered audio, cancel the in-flight
// response) at most once per response, no matter how many speech-start
// signals the detector emits.
type Controller struct {
	state State
}

func NewController() *Controller {
	return &Controller{state: Idle}
}

func (c *Controller) State() State {
	return c.state
}

// BeginResponse marks a new response streaming. It also clears a pending
// interrupt: a fresh response supersedes the canceled one.
func (c *Controller) BeginResponse() {
	c.state = AIResponding
}

// CompleteResponse marks the in-flight response finished. A completion that
// races an interrupt (the cancel arrived too late) still settles to Idle.
func (c *Controller) CompleteResponse() {
	c.state = Idle
}

// Interrupt handles a speech-started signal. clear and cancel are both true
// exactly when the signal caught an active response; repeat signals while the
// interrupt is pending return false, false.
func (c *Controller) Interrupt() (clear, cancel bool) {
	if c.state != AIResponding {
		return false, false
	}
	c.state = UserInterrupting
	return true, true
}

// AckCancel settles a pending interrupt once the cancellation is confirmed.
func (c *Controller) AckCancel() {
	if c.state == UserInterrupting {
		c.state = Idle
	}
}
