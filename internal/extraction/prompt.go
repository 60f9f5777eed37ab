package extraction

import "fmt"

const systemInstruction = "Respond with exactly one valid JSON object that matches the schema given by the user. Do not use markdown fences and do not add any explanation."

func buildPrompt(text, sourceURL, now string) string {
	return fmt.Sprintf(`Read the website text below and describe the company behind it as JSON with this exact schema:

{
  "summary": "one or two sentence description of the company",
  "what_they_do": ["statement", "..."] (3-6 items),
  "keywords": ["tag", "..."] (5-10 items),
  "derived_signals": ["inferred fact", "..."] (2-4 items, e.g. "careers page present", "active blog", "changelog exists"),
  "sources": [{"url": %q, "timestamp": %q}]
}

Rules:
- Use only facts stated in the text. Do not make things up.
- Return a single JSON object and nothing else.

--- WEBSITE TEXT ---
%s
--- END ---`, sourceURL, now, text)
}
