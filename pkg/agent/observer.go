package agent

// Observer receives progress callbacks while a Runner works. Calls are made
// from the goroutine running Run.
type Observer interface {
	// RoundStarted is called before each model call, starting at 1.
	RoundStarted(round int)
	// Token is called for every streamed piece of model output.
	Token(delta string)
	// ToolStarted is called before a tool is invoked.
	ToolStarted(tool, input string)
	// ToolFinished is called with the observation fed back to the model.
	// err is the tool failure, if any.
	ToolFinished(tool, observation string, err error)
}

// NopObserver ignores all callbacks.
type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) RoundStarted(int)                   {}
func (NopObserver) Token(string)                       {}
func (NopObserver) ToolStarted(string, string)         {}
func (NopObserver) ToolFinished(string, string, error) {}
