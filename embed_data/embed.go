package embed_data

import _ "embed"

// ModelDetails holds pricing and limits per model, keyed by model name.
//
//go:embed models_details/model_details.json
var ModelDetails []byte

// DocCommentPrompt is the system prompt sent with every documentation request.
//
//go:embed prompts/doc_comment_prompt.txt
var DocCommentPrompt []byte
