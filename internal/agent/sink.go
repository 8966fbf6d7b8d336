package agent

// Sink observes the events of one agent run. Implementations must not be
// shared between runs.
type Sink interface {
	OnCompletion(text string)
	OnToolResult(output string)
}

// Recorder captures events in arrival order.
type Recorder struct {
	completions []string
	toolResults []string
}

func NewRecorder() *Recorder {
	return &Recorder{completions: []string{}, toolResults: []string{}}
}

func (r *Recorder) OnCompletion(text string) {
	r.completions = append(r.completions, text)
}

func (r *Recorder) OnToolResult(output string) {
	r.toolResults = append(r.toolResults, output)
}

// Drain hands over the captured events and leaves the recorder empty.
func (r *Recorder) Drain() (completions, toolResults []string) {
	completions, toolResults = r.completions, r.toolResults
	if completions == nil {
		completions = []string{}
	}
	if toolResults == nil {
		toolResults = []string{}
	}
	r.completions, r.toolResults = []string{}, []string{}
	return completions, toolResults
}
