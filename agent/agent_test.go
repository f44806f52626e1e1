package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentllm/agentllm/credstore"
	"github.com/agentllm/agentllm/engine"
	"github.com/agentllm/agentllm/history"
	"github.com/agentllm/agentllm/toolkit"
)

var baseInstructions = []string{"You are a release assistant.", "Be concise."}

func floatPtr(v float64) *float64 { return &v }

// fatalConfig reports configured but fails its instruction fetch, the way
// a derived toolkit does when its external document is unreachable.
type fatalConfig struct {
	instructionCalls int
}

func (c *fatalConfig) Name() string                                         { return "broken_extension" }
func (c *fatalConfig) IsRequired() bool                                     { return true }
func (c *fatalConfig) IsConfigured(ctx context.Context, userID string) bool { return true }
func (c *fatalConfig) CheckAuthorizationRequest(ctx context.Context, message, userID string) string {
	return ""
}
func (c *fatalConfig) ExtractAndStoreConfig(ctx context.Context, message, userID string) (string, error) {
	return "", nil
}
func (c *fatalConfig) GetConfigPrompt(ctx context.Context, userID string) string { return "" }
func (c *fatalConfig) GetToolkit(ctx context.Context, userID string) (toolkit.Toolkit, error) {
	return nil, nil
}
func (c *fatalConfig) GetAgentInstructions(ctx context.Context, userID string) ([]string, error) {
	c.instructionCalls++
	return nil, toolkit.NewFatalConfigError("broken_extension", "document fetch failed", nil)
}

type fixture struct {
	creds        *credstore.MemoryStore
	hist         *history.MemoryStore
	stub         *engine.Stub
	jira         *toolkit.JiraConfig
	configurator *Configurator
	wrapper      *Wrapper
}

func newFixture(t *testing.T, extra ...toolkit.Config) *fixture {
	t.Helper()

	creds := credstore.NewMemoryStore()
	hist := history.NewMemoryStore(0)
	stub := &engine.Stub{Fragments: []string{"sunny", " today"}}
	jira := toolkit.NewJiraConfig(creds, nil, "https://jira.example.com")

	configs := append([]toolkit.Config{jira}, extra...)
	configurator := NewConfigurator("release-manager", "manages releases", baseInstructions,
		configs, stub, hist, Params{Model: "test-model", Temperature: floatPtr(0.7), MaxTokens: 512})

	return &fixture{
		creds:        creds,
		hist:         hist,
		stub:         stub,
		jira:         jira,
		configurator: configurator,
		wrapper:      NewWrapper(configurator, "user-1", "sess-1"),
	}
}

func (f *fixture) configure(t *testing.T) {
	t.Helper()
	_, err := f.wrapper.Run(context.Background(), "my jira token is test-token-12345")
	require.NoError(t, err)
}

func TestRunPromptsWhenUnconfigured(t *testing.T) {
	// Scenario: fresh session, required toolkit unconfigured, ordinary
	// message. The response is the toolkit's prompt and the engine is
	// never touched.
	f := newFixture(t)

	resp, err := f.wrapper.Run(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, f.jira.GetConfigPrompt(context.Background(), "user-1"), resp.Content)
	assert.Zero(t, f.stub.TotalCalls())
}

func TestRunExtractsAndStoresToken(t *testing.T) {
	// Scenario: configuration-shaped message creates the credential and
	// returns a same-turn confirmation without calling the engine.
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.wrapper.Run(ctx, "my jira token is ABC123XYZ")
	require.NoError(t, err)

	payload, found, err := f.creds.Get(ctx, "jira", "user-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "ABC123XYZ", payload["token"])

	// Last required toolkit just completed, the confirmation says so
	assert.Contains(t, resp.Content, "All required setup is complete")
	assert.Zero(t, f.stub.TotalCalls())
}

func TestRunInvokesEngineWhenReady(t *testing.T) {
	// Scenario: fully configured, ordinary message. Exactly one engine
	// call, instructions carry base plus toolkit lines in registration
	// order.
	f := newFixture(t)
	f.configure(t)
	ctx := context.Background()

	resp, err := f.wrapper.Run(ctx, "what's the weather")
	require.NoError(t, err)

	assert.Equal(t, "sunny today", resp.Content)
	assert.Equal(t, 1, f.stub.TotalCalls())

	req := f.stub.LastRequest.Load()
	require.NotNil(t, req)
	require.GreaterOrEqual(t, len(req.Instructions), 3)
	assert.Equal(t, baseInstructions[0], req.Instructions[0])
	assert.Equal(t, baseInstructions[1], req.Instructions[1])
	assert.Contains(t, req.Instructions[2], "Jira")

	// The configured toolkit is attached
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "search_issues", req.Tools[0].Name)
}

func TestRunFatalBuildErrorNotCached(t *testing.T) {
	// Scenario: a fatal dependency-fetch error surfaces as an error
	// distinct from a prompt, and the broken build is never cached.
	broken := &fatalConfig{}
	f := newFixture(t, broken)
	f.configure(t)
	ctx := context.Background()

	_, err := f.wrapper.Run(ctx, "what's the status")
	require.Error(t, err)

	var fatal *toolkit.FatalConfigError
	assert.True(t, errors.As(err, &fatal))
	assert.Zero(t, f.stub.TotalCalls())

	// The next call retries the build instead of reusing a broken agent
	_, err = f.wrapper.Run(ctx, "try again")
	require.Error(t, err)
	assert.Equal(t, 2, broken.instructionCalls)
}

func TestBuildAgentUnreachableUntilConfigured(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.configurator.BuildAgent(ctx, "user-1")
	require.Error(t, err)

	var violation *toolkit.InvariantViolationError
	assert.True(t, errors.As(err, &violation))

	f.configure(t)
	built, err := f.configurator.BuildAgent(ctx, "user-1")
	require.NoError(t, err)
	assert.NotNil(t, built)
}

func TestInvalidationRebuildsWithNewToolkit(t *testing.T) {
	// A credential stored mid-session must invalidate the cached agent
	// so the next run picks up the new tool set.
	creds := credstore.NewMemoryStore()
	hist := history.NewMemoryStore(0)
	stub := &engine.Stub{Fragments: []string{"ok"}}
	jira := toolkit.NewJiraConfig(creds, nil, "https://jira.example.com")
	contrib := toolkit.NewContribGuideConfig("")

	configurator := NewConfigurator("release-manager", "", baseInstructions,
		[]toolkit.Config{contrib, jira}, stub, hist, Params{Model: "m"})
	wrapper := NewWrapper(configurator, "user-1", "sess-1")
	ctx := context.Background()

	// Jira unconfigured: prompted first. Then the user supplies the
	// token; the wrapper invalidates.
	resp, err := wrapper.Run(ctx, "hello")
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "Jira")

	_, err = wrapper.Run(ctx, "my jira token is fresh-token-99")
	require.NoError(t, err)

	_, err = wrapper.Run(ctx, "search open issues")
	require.NoError(t, err)

	req := stub.LastRequest.Load()
	require.NotNil(t, req)

	var toolNames []string
	for _, tool := range req.Tools {
		toolNames = append(toolNames, tool.Name)
	}
	assert.Contains(t, toolNames, "search_issues")
}

func TestConfiguratorState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, StateGatheringConfig, f.configurator.StateFor(ctx, "user-1"))
	f.configure(t)
	assert.Equal(t, StateReady, f.configurator.StateFor(ctx, "user-1"))
}

func TestCredentialListenerNotified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var gotService, gotUser string
	f.configurator.OnCredentialStored(func(service, userID string) {
		gotService, gotUser = service, userID
	})

	_, err := f.configurator.HandleMessage(ctx, "my jira token is notify-me-123", "user-1")
	require.NoError(t, err)

	assert.Equal(t, "jira", gotService)
	assert.Equal(t, "user-1", gotUser)
}

func TestRecoverableExtractionReprompts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Token-shaped but invalid: rejected with a re-prompt, no hard error
	resp, err := f.wrapper.Run(ctx, "my jira token is ab")
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "rejected")
	assert.False(t, f.jira.IsConfigured(ctx, "user-1"))
	assert.Zero(t, f.stub.TotalCalls())
}
