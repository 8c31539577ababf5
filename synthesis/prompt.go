package synthesis

import (
	"fmt"
	"strings"
)

// FallbackAnswer is returned when the completion service stays unreachable
// after retries. End users never see a raw transport error.
const FallbackAnswer = "Sorry, I couldn't find that information."

// NoDocumentsAnswer is returned for an empty corpus under the fallback
// policy.
const NoDocumentsAnswer = "Sorry, I couldn't find that information. No documents have been uploaded yet."

// groundedPromptTemplate places the retrieved context before the question
// and restricts the model to that context.
const groundedPromptTemplate = `You are a friendly and helpful assistant. Your main purpose is to answer questions using ONLY the information provided in the Context.

Here are your rules:

1. If the user starts with a greeting, respond politely and offer help with questions about the main subject of the Context.
2. If the user asks a question, find the answer solely within the Context and give it in a clear, conversational manner. Do not add information that is not in the text.
3. If the answer is not found in the Context, politely say that you cannot find that information in the text you have.
4. Do not dump large blocks of the Context unprompted; wait for a specific question.

Context:
%s

Question:
%s

Answer:`

// modelOnlyPromptTemplate is used when the tenant's corpus produced no
// context and the engine is configured to fall through to the bare model.
const modelOnlyPromptTemplate = `You are a friendly and helpful assistant. Answer the question below from general knowledge. If you are not confident in the answer, say so plainly instead of guessing.

Question:
%s

Answer:`

// BuildPrompt renders the grounded prompt: context first, then the question.
func BuildPrompt(contextText, query string) string {
	return fmt.Sprintf(groundedPromptTemplate, strings.TrimSpace(contextText), strings.TrimSpace(query))
}

// BuildModelOnlyPrompt renders the ungrounded prompt for empty-corpus
// queries.
func BuildModelOnlyPrompt(query string) string {
	return fmt.Sprintf(modelOnlyPromptTemplate, strings.TrimSpace(query))
}
