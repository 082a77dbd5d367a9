package query

import (
	"fmt"
	"strings"
)

// promptTemplate instructs the model to answer strictly from the supplied
// excerpts and to refuse explicitly when they do not contain the answer.
const promptTemplate = `You are an expert AI assistant specializing in document analysis and question answering.

Your task is to provide accurate, comprehensive answers based ONLY on the provided document excerpts below.

INSTRUCTIONS:
1. Synthesize information from multiple sources when relevant
2. Provide specific details and examples from the documents
3. If information spans multiple excerpts, connect them coherently
4. Cite source metadata when making claims
5. If the answer is not in the documents, clearly state: "Based on the provided documents, I don't have enough information to answer this question."
6. Be concise but thorough - aim for completeness without unnecessary verbosity

DOCUMENT EXCERPTS:
%s

USER QUESTION: %s

ANSWER (synthesized from the documents above):`

// buildPrompt fills the template with the retrieved chunk texts and the
// verbatim question. Chunks are joined by blank lines in retrieval order.
func buildPrompt(question string, chunks []string) string {
	return fmt.Sprintf(promptTemplate, strings.Join(chunks, "\n\n"), question)
}
