// Package prompts holds the built-in LLM prompt templates.
package prompts

import "github.com/custodia-labs/plancite/internal/core/ports/driven"

// AnswerSystem instructs the model to answer only from numbered context
// blocks and to reply with strict JSON.
const AnswerSystem = `You answer questions about construction documents (drawings, specifications, schedules).
Use ONLY the numbered context blocks provided by the user. If they do not contain the answer, say so.

Reply with a single JSON object and nothing else:
{"answer": "<answer text, citing blocks inline as [n]>",
 "citations": [{"chunk_id": "<the chunk_id of a block you relied on>", "confidence": <0.0-1.0>}]}

Cite every block you relied on, and only those. Confidence is how strongly the block supports your answer.`

// Rerank asks for a relevance score per numbered passage.
const Rerank = `Score how relevant each numbered passage is to the query, from 0.0 (unrelated) to 1.0 (directly answers it).

Query: %s

Passages:
%s

Reply with a single JSON object and nothing else:
{"scores": [{"index": <passage number>, "score": <0.0-1.0>}]}`

// Defaults maps prompt names to their built-in templates.
func Defaults() map[string]string {
	return map[string]string{
		driven.PromptAnswerSystem: AnswerSystem,
		driven.PromptRerank:       Rerank,
	}
}

// Load returns name from store, or the built-in template when store is
// nil or fails.
func Load(store driven.PromptStore, name string) string {
	if store != nil {
		if p, err := store.Load(name); err == nil && p != "" {
			return p
		}
	}
	return Defaults()[name]
}
