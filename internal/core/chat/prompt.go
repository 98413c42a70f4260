package chat

import (
	"fmt"
	"strings"

	"docqa/internal/core/retriever"
)

func buildCondensePrompt(history []HistoryPair, question string) string {
	var b strings.Builder
	b.WriteString("Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.\n\n")
	b.WriteString("Chat History:\n")
	for _, h := range history {
		b.WriteString(fmt.Sprintf("Human: %s\nAssistant: %s\n", sanitize(h.Question), sanitize(h.Answer)))
	}
	b.WriteString(fmt.Sprintf("Follow Up Input: %s\nStandalone question:", question))
	return b.String()
}

func buildAnswerPrompt(hits []retriever.Hit, summary, question string) string {
	var b strings.Builder
	b.WriteString("You are Claire, an AI assistant helping university students. Answer accurately and clearly, grounded in the context.\n\n")
	b.WriteString("Context from documents:\n")
	for _, h := range hits {
		b.WriteString(sanitize(h.Content))
		b.WriteString("\n\n")
	}
	b.WriteString("Conversation memory:\n")
	b.WriteString(summary)
	b.WriteString("\n\nUser question:\n")
	b.WriteString(question)
	b.WriteString("\n\nGive the student a detailed, useful answer based on the context and the memory.\n")
	return b.String()
}

func sanitize(s string) string {
	out := strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(out)
}
