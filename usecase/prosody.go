package usecase

import "strings"

// Prosody defaults. Neutral is rate 1.0, pitch 1.0; heuristic rules
// nudge both per segment.
const (
	neutralRate  = 1.0
	neutralPitch = 1.0

	questionPitch = 1.15

	exclamationRate  = 1.1
	exclamationPitch = 1.1

	apologyRate  = 0.9
	apologyPitch = 0.9

	positiveRate  = 1.05
	positivePitch = 1.1
)

// apologyKeywords lower the voice; positiveKeywords lift it.
var (
	apologyKeywords  = []string{"sorry", "apologize", "apologise", "unfortunately"}
	positiveKeywords = []string{"great", "awesome", "excellent", "fantastic", "well done", "good job", "congratulations"}
)

// Segment is one sentence-level unit of synthesized speech. Segments
// are ephemeral: planned per utterance, consumed during playback,
// never persisted.
type Segment struct {
	Text  string
	Rate  float64
	Pitch float64
	First bool
	Last  bool
}

// PlanUtterance splits assistant text into ordered sentence segments
// and assigns rate/pitch per segment. Returns nil for blank input.
func PlanUtterance(text string) []Segment {
	sentences := splitSentences(stripEmphasis(text))
	if len(sentences) == 0 {
		return nil
	}

	segments := make([]Segment, 0, len(sentences))
	for i, sentence := range sentences {
		rate, pitch := segmentProsody(sentence)
		segments = append(segments, Segment{
			Text:  sentence,
			Rate:  rate,
			Pitch: pitch,
			First: i == 0,
			Last:  i == len(sentences)-1,
		})
	}
	return segments
}

// segmentProsody applies the ordered heuristic rules; the first
// matching rule wins.
func segmentProsody(sentence string) (rate, pitch float64) {
	lower := strings.ToLower(sentence)
	switch {
	case strings.Contains(sentence, "?"):
		return neutralRate, questionPitch
	case strings.Contains(sentence, "!"):
		return exclamationRate, exclamationPitch
	case containsAny(lower, apologyKeywords):
		return apologyRate, apologyPitch
	case containsAny(lower, positiveKeywords):
		return positiveRate, positivePitch
	default:
		return neutralRate, neutralPitch
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// stripEmphasis removes markdown-style emphasis characters that would
// otherwise be read aloud.
func stripEmphasis(text string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '*', '_', '`', '#', '~':
			return -1
		}
		return r
	}, text)
}

// splitSentences breaks text at sentence-terminal punctuation, keeping
// the punctuation with its sentence. Text without any terminal
// punctuation is one segment.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			flush()
		}
	}
	flush()

	return sentences
}
