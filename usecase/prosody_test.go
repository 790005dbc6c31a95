package usecase

import "testing"

func TestPlanUtteranceSplitsSentences(t *testing.T) {
	segments := PlanUtterance("First sentence. Second sentence. Third one.")

	if len(segments) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(segments))
	}
	if !segments[0].First || segments[0].Last {
		t.Error("First segment flags wrong")
	}
	if segments[1].First || segments[1].Last {
		t.Error("Middle segment flags wrong")
	}
	if segments[2].First || !segments[2].Last {
		t.Error("Last segment flags wrong")
	}
	if segments[0].Text != "First sentence." {
		t.Errorf("Unexpected first segment text: %q", segments[0].Text)
	}
}

func TestPlanUtteranceExclamationThenNeutral(t *testing.T) {
	segments := PlanUtterance("Great job! Let's continue.")

	if len(segments) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(segments))
	}
	if segments[0].Rate != exclamationRate || segments[0].Pitch != exclamationPitch {
		t.Errorf("Expected elevated rate/pitch for exclamation, got rate=%v pitch=%v",
			segments[0].Rate, segments[0].Pitch)
	}
	if segments[1].Rate != neutralRate || segments[1].Pitch != neutralPitch {
		t.Errorf("Expected neutral rate/pitch, got rate=%v pitch=%v",
			segments[1].Rate, segments[1].Pitch)
	}
}

func TestPlanUtteranceRuleOrder(t *testing.T) {
	// Question outranks exclamation and keywords.
	segments := PlanUtterance("Sorry, was that great?")
	if len(segments) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segments))
	}
	if segments[0].Pitch != questionPitch || segments[0].Rate != neutralRate {
		t.Errorf("Expected question rule to win, got rate=%v pitch=%v",
			segments[0].Rate, segments[0].Pitch)
	}

	// Apology outranks positive keywords.
	segments = PlanUtterance("Sorry, that was a great answer.")
	if segments[0].Rate != apologyRate || segments[0].Pitch != apologyPitch {
		t.Errorf("Expected apology rule to win, got rate=%v pitch=%v",
			segments[0].Rate, segments[0].Pitch)
	}
}

func TestPlanUtterancePositiveKeywords(t *testing.T) {
	segments := PlanUtterance("That was an excellent answer.")
	if segments[0].Rate != positiveRate || segments[0].Pitch != positivePitch {
		t.Errorf("Expected positive rule, got rate=%v pitch=%v",
			segments[0].Rate, segments[0].Pitch)
	}
}

func TestPlanUtteranceNoTerminalPunctuation(t *testing.T) {
	segments := PlanUtterance("just a fragment with no punctuation")
	if len(segments) != 1 {
		t.Fatalf("Expected whole text as one segment, got %d", len(segments))
	}
	if !segments[0].First || !segments[0].Last {
		t.Error("Single segment must be both first and last")
	}
	if segments[0].Rate != neutralRate || segments[0].Pitch != neutralPitch {
		t.Error("Expected neutral prosody for plain fragment")
	}
}

func TestPlanUtteranceStripsEmphasis(t *testing.T) {
	segments := PlanUtterance("This is **bold** and `code` and _italic_.")
	if len(segments) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segments))
	}
	if segments[0].Text != "This is bold and code and italic." {
		t.Errorf("Emphasis characters not stripped: %q", segments[0].Text)
	}
}

func TestPlanUtteranceBlankInput(t *testing.T) {
	if segments := PlanUtterance(""); segments != nil {
		t.Errorf("Expected nil for empty text, got %v", segments)
	}
	if segments := PlanUtterance("   "); segments != nil {
		t.Errorf("Expected nil for whitespace text, got %v", segments)
	}
}
