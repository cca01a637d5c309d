package chat

// Result carries either a generated answer or the generation failure. The
// caller decides how to render a failure; Text gives the conventional
// textual form so the chat surface always has something to show.
type Result struct {
	Answer string
	Err    error
}

func (r Result) Failed() bool {
	return r.Err != nil
}

// Text returns the answer, or the textual error payload for a failed
// generation.
func (r Result) Text() string {
	if r.Err != nil {
		return "Error processing question: " + r.Err.Error()
	}
	return r.Answer
}
