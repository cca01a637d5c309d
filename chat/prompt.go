package chat

import "strings"

// PromptVersion identifies the template contract below. Bump it whenever
// the wording of either template changes.
const PromptVersion = "rag/v1"

const ragTemplate = `You are an intelligent AI assistant. Please answer the question based on the provided context.

Context:
{context}

Previous conversation:
{history}

Question: {question}

Please provide a detailed and accurate answer based on the context above. If the context does not contain relevant information, say that you don't have enough information to answer instead of making something up.

Answer:`

const plainTemplate = `Previous conversation:
{history}

Question: {question}

Answer:`

// BuildPrompt fills the RAG template. Pure interpolation: nothing is
// truncated here, an oversized prompt is the language model's error to
// surface.
func BuildPrompt(context, history, question string) string {
	r := strings.NewReplacer(
		"{context}", context,
		"{history}", history,
		"{question}", question,
	)
	return r.Replace(ragTemplate)
}

// BuildPlainPrompt fills the context-free template used when retrieval is
// disabled.
func BuildPlainPrompt(history, question string) string {
	r := strings.NewReplacer(
		"{history}", history,
		"{question}", question,
	)
	return r.Replace(plainTemplate)
}
