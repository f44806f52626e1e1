// Package agentllm provides an OpenAI-compatible gateway for agents whose
// capabilities are configured per user, in conversation.
//
// Agents declare an ordered list of toolkit configurations (OAuth flows,
// API tokens, derived instruction extensions). Until every required
// toolkit is configured, the agent answers with setup prompts instead of
// invoking the execution engine; configuration-shaped messages (pasted
// authorization codes, token statements) are extracted and stored per
// user. Once ready, the gateway builds an agent with the materialized
// tools and streams responses in a fixed chunk shape that proxy frontends
// consume directly.
//
// # Quick Start
//
// Install the gateway:
//
//	go install github.com/agentllm/agentllm/cmd/agentllm@latest
//
// Create a configuration:
//
//	engine:
//	  type: "openai"
//	  model: "gpt-4o-mini"
//	  api_key: "${OPENAI_API_KEY}"
//	storage:
//	  driver: "sqlite3"
//	  dsn: "agentllm.db"
//	agents:
//	  - release-manager
//
// Start serving:
//
//	agentllm serve --config config.yaml
//
// Then point any OpenAI-compatible client at POST /v1/chat/completions
// with model "agentllm/release-manager".
//
// # Packages
//
//   - credstore: per-(service, user) credential records over database/sql
//   - toolkit: capability units and their configuration state machines
//   - agent: configurator, built agent, per-session wrapper, registry
//   - engine: execution-engine boundary with an OpenAI-compatible client
//   - provider: the HTTP surface, identity extraction, wrapper cache
//   - history: conversation history stores (memory and SQL)
package agentllm
