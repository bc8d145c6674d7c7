// Package prompts embeds the pipeline's system prompts.
package prompts

import "embed"

//go:embed *.md
var PromptsFS embed.FS
