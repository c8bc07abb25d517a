package pipeline

// Fixed responses returned without invoking the generation engine.
const (
	noDocumentsMessage      = "Please upload a PDF first!"
	noContextMessage        = "No relevant context found."
	noSummaryContextMessage = "No document context available to summarize."
	compareGuidanceMessage  = "Provide at least two document ids to compare."
	noCompareContextMessage = "No document context available to compare."
)

// Retrieval queries for the operations that have no user question.
const (
	summaryQuery = "Give a concise summary of the document."
	compareQuery = "Compare the main topics, findings, and conclusions of the documents."
)

func qaPrompt(contextText, question string) string {
	return "You are a helpful assistant answering questions about a PDF.\n" +
		"Use ONLY the provided context. If the answer is not present, say so briefly.\n\n" +
		"Context:\n" + contextText + "\n\n" +
		"Question: " + question + "\n" +
		"Answer:"
}

func summaryPrompt(contextText string) string {
	return "Summarize the following document content in 6-8 concise bullet points.\n\n" +
		"Context:\n" + contextText + "\n\n" +
		"Summary:"
}

func comparePrompt(contextText string) string {
	return "You are a helpful assistant comparing documents.\n" +
		"Use ONLY the provided context. Describe the key similarities and differences between the documents.\n\n" +
		"Context:\n" + contextText + "\n\n" +
		"Comparison:"
}
