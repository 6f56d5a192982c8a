package pipeline

import "github.com/liut/showroom/pkg/models/aigc"

// BuildPrompt renders the context window followed by the current question
func BuildPrompt(window aigc.Turns, label, userText string) string {
	question := label + ": " + userText
	if ctx := window.Render(); len(ctx) > 0 {
		return ctx + "\n" + question
	}
	return question
}
