package stream

// Event is one value produced by a streaming turn. The set is closed: any
// number of Delta events followed by exactly one Done or Failure.
type Event interface {
	isEvent()
}

// Delta is one incremental text fragment of the assistant reply.
type Delta struct {
	Text string
}

// Done is the successful terminal event for a turn.
type Done struct {
	ChatID       string
	InputTokens  int
	OutputTokens int
	// Title is set only when the chat was created by this turn.
	Title string
	// ImageURL is set only when an image was generated and stored.
	ImageURL string
}

// Failure terminates a turn that broke mid-stream. The orchestrator never
// emits a wire-level error itself; the transport layer translates Failure
// into whatever its protocol requires.
type Failure struct {
	Err error
}

func (Delta) isEvent()   {}
func (Done) isEvent()    {}
func (Failure) isEvent() {}
