package domain

// NoInformationAnswer is returned when retrieval finds nothing.
const NoInformationAnswer = "I could not find any relevant information in the indexed documents to answer this question."

// Answer is the result of a retrieval-augmented query.
type Answer struct {
	// Text is the generated answer, or an explanation when generation failed.
	Text string `json:"text"`

	// Sources holds the metadata of every chunk used, in retrieval order.
	Sources []Metadata `json:"sources"`

	// ChunksUsed is the number of retrieved chunks placed in the prompt.
	ChunksUsed int `json:"chunks_used"`

	// Error is set when generation failed after a successful retrieval.
	Error string `json:"error,omitempty"`
}

// Failed reports whether generation failed.
func (a *Answer) Failed() bool {
	return a.Error != ""
}
