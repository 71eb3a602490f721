package pipeline

import (
	"fmt"
	"strings"
)

func summarizePrompt(query, content string) string {
	return fmt.Sprintf(`You are a research summarizer. Given a source and a research query,
write a concise 3-4 sentence summary of the source that is relevant to the query.
Focus only on information that helps answer the query.
Be factual and objective.

Query: %s

Source content:
%s

Write a concise summary:`, query, content)
}

func critiquePrompt(query, summary string) string {
	return fmt.Sprintf(`You are a critical research reviewer. Analyze this summary and identify any issues.
Check for:
1. Vague or unsupported claims
2. Potential bias or one-sided perspective
3. Missing important context
4. Contradictions or logical errors
5. Relevance to the query

Query: %s

Summary: %s

You MUST respond in EXACTLY this format with no extra text before or after:
CONFIDENCE: HIGH or MEDIUM or LOW
ISSUES: describe issues here, or write None if no issues found
VERDICT: RELIABLE or QUESTIONABLE or UNRELIABLE`, query, summary)
}

func claimsPrompt(query, label, summary string) string {
	return fmt.Sprintf(`You are a fact-checker. Extract the 2-4 most important factual claims that this
source makes about the research query. State each claim as one short, self-contained sentence.
Mark STATUS as SUPPORTED when the source asserts the claim and DISPUTED when the source
argues against it or reports it as contested.

Query: %s

%s:
%s

You MUST respond in EXACTLY this format, repeating the block for each claim:
CLAIM: write the claim here
STATUS: SUPPORTED or DISPUTED
REASON: short justification from the source
---`, query, label, summary)
}

func synthesizePrompt(query string, summaries []Summary, claims []Claim) string {
	var b strings.Builder
	b.WriteString("=== VERIFIED RESEARCH SUMMARIES ===\n")
	for _, s := range summaries {
		fmt.Fprintf(&b, "\n[%s] %s", s.SourceLabel, s.Title)
		if s.URLOrFilename != "" {
			fmt.Fprintf(&b, " (%s)", s.URLOrFilename)
		}
		fmt.Fprintf(&b, "\nConfidence: %s\nSummary: %s\n", confidenceOrDefault(s.Confidence), s.Text)
	}

	var disputed []string
	if len(claims) > 0 {
		b.WriteString("\n=== FACT-CHECKED CLAIMS ===\n")
		for _, c := range claims {
			fmt.Fprintf(&b, "[%s] %s (sources: %s)\n", strings.ToUpper(string(c.Status)), c.Text, strings.Join(c.SupportingSources, ", "))
			if c.Status == ClaimDisputed {
				disputed = append(disputed, c.Text)
			}
		}
	}

	warning := ""
	if len(disputed) > 0 {
		warning = "\nNote: The following claims are disputed across sources: " + strings.Join(disputed, "; ") + "\n"
	}

	return fmt.Sprintf(`You are a research synthesizer. Based on verified research summaries and fact-checked claims,
write a comprehensive, well-structured answer to the research query.

Research Query: %s

%s%s
Instructions:
- Write a clear, comprehensive answer directly addressing the query
- Cite sources inline using their labels exactly, e.g. [Source 1], [Source 2]
- Only cite the sources listed above
- Clearly mark any disputed claims
- Structure your answer with these sections:
  ## Summary
  (2-3 sentence overview)

  ## Key Findings
  (detailed findings with citations)

  ## Disputed or Uncertain Points
  (any conflicting information, or write 'None' if all claims are verified)

  ## Conclusion
  (brief conclusion)

Write the answer now:`, query, b.String(), warning)
}

// FollowupPrompt asks a question about a previous answer without re-running research.
func FollowupPrompt(originalQuery, originalAnswer, question string) string {
	return fmt.Sprintf(`You are an expert research assistant. A user conducted a research query and received an answer.
They now have a follow-up question.

Original Research Query: %s

Research Answer:
%s

Follow-up Question: %s

Instructions:
- If the follow-up asks for more detail, expand on it with specific facts, examples and nuance
- If it asks to simplify or summarize, give a clear concise explanation
- If it raises a new angle not covered in the answer, address it directly
- If something is uncertain or debated, say so and present the competing views
- Use paragraphs, and use lists only when listing is genuinely needed
- Never make up facts; say so when you are not confident`, originalQuery, originalAnswer, question)
}

func confidenceOrDefault(c Confidence) Confidence {
	if c == "" {
		return ConfidenceMedium
	}
	return c
}
