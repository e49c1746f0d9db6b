package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bidcraft/bidcraft/engine/llm"
)

// structuredPromptLimit bounds how much document text is sent for
// structured distillation; tables and pricing grids live near the front of
// RFP attachments often enough that truncation is acceptable.
const structuredPromptLimit = 12000

const structuredPrompt = `Extract every table and pricing grid from the document below.
Respond with a single JSON object of the form
{"tables": [{"title": string, "rows": [[string]]}], "pricing": [{"item": string, "amount": string}]}.
Respond with {} when the document has neither.

Document:
%s`

// distillStructuredData asks the completion client for tables and pricing
// grids found in the text. The result is nil when the document has none.
func distillStructuredData(ctx context.Context, client llm.Client, text string) (map[string]any, error) {
	if client == nil {
		return nil, errors.New("extract: completion client is required")
	}
	clipped := text
	if len(clipped) > structuredPromptLimit {
		clipped = clipped[:structuredPromptLimit]
	}
	raw, err := client.Complete(ctx, fmt.Sprintf(structuredPrompt, clipped))
	if err != nil {
		return nil, fmt.Errorf("extract: structured distillation: %w", err)
	}
	payload := trimToJSON(raw)
	if payload == "" {
		return nil, errors.New("extract: structured response carried no JSON")
	}
	structured := map[string]any{}
	if err := json.Unmarshal([]byte(payload), &structured); err != nil {
		return nil, fmt.Errorf("extract: decode structured response: %w", err)
	}
	if len(structured) == 0 {
		return nil, nil
	}
	return structured, nil
}

// trimToJSON strips prose and code fences around the first JSON object in a
// model response.
func trimToJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
