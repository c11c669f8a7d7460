package llm

// Message is one conversation entry as sent to the daemon.
// Images carry bare base64 payloads, without a data URI prefix.
type Message struct {
	Role    string   // "system" | "user" | "assistant"
	Content string
	Images  []string
}

// ChatRequest is the input for a non-streaming chat completion.
type ChatRequest struct {
	Model    string
	Messages []Message
	// Options is forwarded verbatim as the daemon's sampling options
	// (num_ctx, temperature, top_k, ...).
	Options map[string]any
}

// ChatResponse is the output from a non-streaming chat completion.
type ChatResponse struct {
	Content          string
	Done             bool
	DoneReason       string
	PromptTokens     int // prompt_eval_count
	CompletionTokens int // eval_count
}

// TotalTokens is the context consumed by the turn.
func (r *ChatResponse) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// ModelDetails is the subset of /api/show the application reads.
type ModelDetails struct {
	Name          string
	Family        string
	ParameterSize string
	Quantization  string
	Capabilities  []string
}

// HasCapability reports whether the daemon advertises name ("vision",
// "completion", ...) for the model.
func (d *ModelDetails) HasCapability(name string) bool {
	for _, c := range d.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}
