// Package file provides filesystem-backed configuration adapters.
//
//   - Loader: TOML settings with .env and environment overrides
//   - PromptStore: user-editable LLM prompts with built-in defaults
package file
