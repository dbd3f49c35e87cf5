package pricing

import "testing"

func TestLookup_CaseInsensitiveSubstring(t *testing.T) {
	prompt, completion := Lookup("GPT-4-Turbo-Preview")
	if prompt != 0.00001 || completion != 0.00003 {
		t.Errorf("expected gpt-4-turbo rates, got %v/%v", prompt, completion)
	}
}

func TestLookup_DeclarationOrder(t *testing.T) {
	// gpt-4-turbo must win over the shorter gpt-4 prefix
	tp, _ := Lookup("gpt-4-turbo")
	gp, _ := Lookup("gpt-4")
	if tp == gp {
		t.Errorf("gpt-4-turbo and gpt-4 should resolve to different rates")
	}
	if gp != 0.00003 {
		t.Errorf("expected gpt-4 prompt rate 0.00003, got %v", gp)
	}
}

func TestLookup_Fallback(t *testing.T) {
	prompt, completion := Lookup("some-custom-model")
	if prompt != FallbackPrompt || completion != FallbackCompletion {
		t.Errorf("expected fallback rates, got %v/%v", prompt, completion)
	}
}

func TestLookup_EmptyModel(t *testing.T) {
	prompt, completion := Lookup("")
	if prompt != FallbackPrompt || completion != FallbackCompletion {
		t.Errorf("expected fallback rates for empty model, got %v/%v", prompt, completion)
	}
}
