package chat

import "testing"

func TestIsTermsConditionsError(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"You must accept the Terms and Conditions before placing an order", true},
		{"TERMS AND CONDITIONS not accepted", true},
		{"terms & condition acceptance required", true},
		{"Out of stock", false},
		{"please accept our terms", false},
		{"condition of the item is used", false},
	}

	for _, tt := range tests {
		if got := isTermsConditionsError(tt.text); got != tt.want {
			t.Errorf("isTermsConditionsError(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestClassifyAcceptance(t *testing.T) {
	tests := []struct {
		utterance string
		want      bool
	}{
		{"yes", true},
		{"Yes!", true},
		{"ok, I accept.", true},
		{"I agree to the terms", true},
		{"y", true},
		{"okay fine", true},
		{"no", false},
		{"no thanks", false},
		{"absolutely not", false},
		{"what terms?", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := classifyAcceptance(tt.utterance); got != tt.want {
			t.Errorf("classifyAcceptance(%q) = %v, want %v", tt.utterance, got, tt.want)
		}
	}
}
