// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EmbeddingService: Turns text into fixed-length vectors (OpenAI or Ollama)
//   - VectorStore: Collection-scoped record storage and similarity search
//   - TextSplitter: Splits document text into overlapping fragments
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Answer generation. Without it, queries return a degraded answer.
//   - PromptStore: Customisable prompt templates. Without it, embedded defaults are used.
//   - SessionStore: Conversation persistence between invocations.
//   - DocumentFetcher: External sources feeding the background poller.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
