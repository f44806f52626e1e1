package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentllm/agentllm/agent"
	"github.com/agentllm/agentllm/credstore"
	"github.com/agentllm/agentllm/engine"
	"github.com/agentllm/agentllm/history"
)

func testDeps() agent.Deps {
	return agent.Deps{
		Creds:   credstore.NewMemoryStore(),
		History: history.NewMemoryStore(0),
		Engine:  &engine.Stub{Fragments: []string{"ok"}},
	}
}

func setReleaseManagerEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvDriveClientID, "client-id")
	t.Setenv(EnvDriveClientSecret, "client-secret")
	t.Setenv(EnvDriveRedirectURI, "https://example.com/callback")
	t.Setenv(EnvSystemPromptURL, "https://docs.example.com/prompt")
	t.Setenv(EnvJiraURL, "https://jira.example.com")
}

func TestRegisterAll(t *testing.T) {
	registry := agent.NewRegistry(testDeps())
	require.NoError(t, Register(registry, nil))

	list := registry.List()
	require.Len(t, list, 2)
	assert.Equal(t, "demo", list[0].Name)
	assert.Equal(t, "release-manager", list[1].Name)
}

func TestRegisterSubset(t *testing.T) {
	registry := agent.NewRegistry(testDeps())
	require.NoError(t, Register(registry, []string{"demo"}))

	list := registry.List()
	require.Len(t, list, 1)
	assert.Equal(t, "demo", list[0].Name)
}

func TestReleaseManagerRequiresEnv(t *testing.T) {
	registry := agent.NewRegistry(testDeps())
	require.NoError(t, Register(registry, nil))

	// With the environment unset, wrapper construction fails fast
	t.Setenv(EnvDriveClientID, "")
	_, err := registry.NewWrapper("release-manager", "user-1", "sess-1", agent.Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvDriveClientID)

	setReleaseManagerEnv(t)
	wrapper, err := registry.NewWrapper("release-manager", "user-1", "sess-1", agent.Params{})
	require.NoError(t, err)
	assert.NotNil(t, wrapper)
}

func TestReleaseManagerGathersConfigFirst(t *testing.T) {
	setReleaseManagerEnv(t)
	registry := agent.NewRegistry(testDeps())
	require.NoError(t, Register(registry, nil))

	wrapper, err := registry.NewWrapper("release-manager", "user-1", "sess-1", agent.Params{})
	require.NoError(t, err)

	// The ordered toolkit list prompts for drive authorization first
	resp, err := wrapper.Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "accounts.google.com")
}

func TestDemoReadyImmediately(t *testing.T) {
	registry := agent.NewRegistry(testDeps())
	require.NoError(t, Register(registry, nil))

	wrapper, err := registry.NewWrapper("demo", "user-1", "sess-1", agent.Params{})
	require.NoError(t, err)

	resp, err := wrapper.Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}
