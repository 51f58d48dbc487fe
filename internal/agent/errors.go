package agent

// DepthCapNotice is the text emitted as a final text event when the
// iteration cap is reached while the model is still requesting tools.
const DepthCapNotice = "Reached the maximum number of reasoning steps without a final answer."

// AlreadyProcessingError is returned by Process when a prior call on the
// same Coordinator has not yet finished.
type AlreadyProcessingError struct{}

func (AlreadyProcessingError) Error() string { return "agent: process already in progress" }

// IsAlreadyProcessing reports whether err is an AlreadyProcessingError.
func IsAlreadyProcessing(err error) bool {
	_, ok := err.(AlreadyProcessingError)
	return ok
}

// toolFailureError wraps a registry dispatch error (such as an unknown tool
// name) in the form surfaced to the conversation as a tool message, matching
// the "Tool '%s' failed: %s" shape. Error Outputs returned by a tool's own
// Execute are passed on as they are, without this wrapping.
type toolFailureError struct {
	name string
	msg  string
}

func (e toolFailureError) Error() string { return "Tool '" + e.name + "' failed: " + e.msg }
