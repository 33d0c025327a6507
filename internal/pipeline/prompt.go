package pipeline

import (
	"fmt"
	"strings"
)

// promptTemplate is the fixed instruction set sent to the language model.
// Downstream consumers rely on the three blank-line-separated sections
// (summary, flashcards, explanation), so the shape contract here is load-
// bearing even though the pipeline never parses the response.
const promptTemplate = `
If the transcript is not in English (e.g., Hindi, Tamil), translate it to English first. Then follow the instructions.
"Regenerate the same 3-part response, but rephrase in a different way using new examples where possible."

1. Write 4 to 6 bullet points to explain the main ideas. Use short, simple sentences. Imagine you are teaching a 10-year-old.

2. Then create 5 flashcards. Each flashcard must include:
Question: [A short question]
Answer: [A short, clear answer]

3. Then give a detailed explanation of the full transcript in simple language. Use very simple words, like you're explaining to a beginner.

Rules:
- Do not include any headings or labels
- Do not explain what you are doing
- Only write the content
- Keep everything clear and easy to understand
- Do not repeat or include these instructions in your response.
- Insert one blank line between each section (summary, flashcards, explanation).

Transcript:
%s
`

// BuildPrompt renders the study-notes prompt around a transcript.
// Pure templating: same transcript in, same prompt out.
func BuildPrompt(transcript string) string {
	return strings.TrimSpace(fmt.Sprintf(promptTemplate, transcript))
}
