package stream

import "encoding/json"

// Kind discriminates stream events.
type Kind int

const (
	// KindDelta carries an incremental text fragment.
	KindDelta Kind = iota
	// KindMetadata carries a frame with no text content, such as usage
	// accounting or role announcements.
	KindMetadata
	// KindFinish marks the end of a generation with its finish reason.
	KindFinish
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindDelta:
		return "delta"
	case KindMetadata:
		return "metadata"
	case KindFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// Event is one decoded stream event. Ownership transfers to the caller on
// yield; the decoder retains only its unconsumed byte buffer.
type Event struct {
	// Kind discriminates the event.
	Kind Kind

	// Text is the incremental fragment for delta events.
	Text string

	// FinishReason is set on finish events.
	FinishReason string

	// Raw is the full frame payload for callers that need fields beyond
	// the common ones.
	Raw json.RawMessage
}

// chunk is the wire shape of a streamed completion frame.
type chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// classify turns a parsed payload into an event.
func classify(raw []byte, c chunk) Event {
	ev := Event{Kind: KindMetadata, Raw: append(json.RawMessage(nil), raw...)}
	if len(c.Choices) == 0 {
		return ev
	}

	first := c.Choices[0]
	if first.FinishReason != "" {
		ev.Kind = KindFinish
		ev.FinishReason = first.FinishReason
		return ev
	}
	if first.Delta.Content != "" {
		ev.Kind = KindDelta
		ev.Text = first.Delta.Content
	}
	return ev
}
