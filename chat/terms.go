package chat

import "strings"

// isTermsConditionsError detects the terms-and-conditions gate in a
// formatted tool-result text: both tokens must be present,
// case-insensitively.
func isTermsConditionsError(text string) bool {
	lowered := strings.ToLower(text)
	return strings.Contains(lowered, "terms") && strings.Contains(lowered, "condition")
}

var acceptanceWords = map[string]bool{
	"yes":    true,
	"accept": true,
	"agree":  true,
	"ok":     true,
	"okay":   true,
	"y":      true,
}

// classifyAcceptance reduces an utterance to a binary accept/decline.
// Anything that does not contain an acceptance word is a decline.
func classifyAcceptance(utterance string) bool {
	for _, word := range strings.Fields(strings.ToLower(utterance)) {
		word = strings.Trim(word, ".,!?")
		if acceptanceWords[word] {
			return true
		}
	}
	return false
}

const termsDeclinedAnswer = "Understood. I won't place the order because the terms and conditions were not accepted. The order has been cancelled; let me know if you change your mind or if there is anything else I can help with."
