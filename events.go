package harmony

// StepEventType represents step-level lifecycle updates.
type StepEventType string

const (
	StepEventDelta   StepEventType = "delta"
	StepEventMessage StepEventType = "message"
	StepEventEnd     StepEventType = "step_end"
)

// StepEvent is one item of a streamed step. Exactly one of Delta, Message
// or Final is set, according to Type.
type StepEvent struct {
	Type StepEventType

	Delta   MessageDelta
	Message Message

	Final StepResult
	Err   error
}
