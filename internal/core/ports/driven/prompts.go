package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptRAGAnswer is the answer-generation prompt.
	// The template expects three %s placeholders: history, context, question.
	PromptRAGAnswer = "rag_answer"
)

// DefaultRAGAnswerPrompt is the built-in template for PromptRAGAnswer.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
const DefaultRAGAnswerPrompt = `You are a financial research assistant. Answer the question using ONLY the context below.
If the context does not contain the information needed, say that you do not have enough information to answer. Do not make up figures.
Mention the sources you relied on.

Conversation so far:
%s

Context:
%s

Question: %s

Answer:`
