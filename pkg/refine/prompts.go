package refine

import (
	"encoding/json"
	"fmt"
	"strings"
)

const singleSystemPrompt = `You are an expert resume writer. Rewrite the given resume bullet point to be concise, achievement-oriented, and quantified where the original provides numbers. Start with a strong action verb. Do not invent facts, metrics, or technologies that are not in the original. Respond with the rewritten bullet text only, no quotes and no commentary.`

const batchSystemPrompt = `You are an expert resume writer. Rewrite each of the given resume bullet points to be concise, achievement-oriented, and quantified where the original provides numbers. Start each with a strong action verb. Do not invent facts, metrics, or technologies that are not in the originals. Respond with a JSON object of the form {"bullets": ["...", "..."]} containing exactly one rewritten bullet per input, in the same order. No other keys, no commentary.`

// buildUserPrompt renders one bullet with its optional context.
func buildUserPrompt(text string, bctx *BulletContext) string {
	var b strings.Builder
	if bctx != nil {
		if bctx.Title != "" {
			fmt.Fprintf(&b, "Role: %s\n", bctx.Title)
		}
		if len(bctx.Technologies) > 0 {
			fmt.Fprintf(&b, "Technologies: %s\n", strings.Join(bctx.Technologies, ", "))
		}
	}
	fmt.Fprintf(&b, "Bullet: %s", text)
	return b.String()
}

// buildBatchPrompt renders the numbered miss list for one batched call.
func buildBatchPrompt(items []batchItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite these %d bullet points:\n", len(items))
	for i, item := range items {
		fmt.Fprintf(&b, "\n%d. %s", i+1, buildUserPrompt(item.text, item.ctx))
	}
	return b.String()
}

// batchReply is the shape the batched prompt asks the model for.
type batchReply struct {
	Bullets []string `json:"bullets"`
}

// parseBatchReply extracts the rewritten bullets from a batched model
// response. Returns ok=false when the response is not parseable at all.
func parseBatchReply(raw string) ([]string, bool) {
	// Models occasionally wrap JSON in a code fence despite the
	// response-format instruction.
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var reply batchReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, false
	}
	return reply.Bullets, true
}
