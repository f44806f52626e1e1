package toolkit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentllm/agentllm/credstore"
)

// fakeExchanger swaps any code for fixed tokens, or fails.
type fakeExchanger struct {
	fail     bool
	lastCode string
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) (string, string, error) {
	f.lastCode = code
	if f.fail {
		return "", "", errors.New("invalid_grant")
	}
	return "access-" + code, "refresh-" + code, nil
}

// fakeFetcher replays scripted document content.
type fakeFetcher struct {
	content string
	err     error
	calls   int
}

func (f *fakeFetcher) FetchDocument(ctx context.Context, docURL, accessToken string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.content, nil
}

func newDriveFixture(t *testing.T) (*DriveConfig, *fakeExchanger, *fakeFetcher, credstore.Store) {
	t.Helper()
	creds := credstore.NewMemoryStore()
	exchanger := &fakeExchanger{}
	fetcher := &fakeFetcher{content: "doc body"}
	cfg := NewDriveConfig(creds, exchanger, fetcher, "client-id", "https://app.example.com/callback")
	return cfg, exchanger, fetcher, creds
}

func TestDriveExtractAuthorizationCode(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"bare google code", "here you go 4/0AbCdEfGh_ij-klMNOP", "4/0AbCdEfGh_ij-klMNOP"},
		{"redirect url", "https://app.example.com/callback?code=abc%2F123&scope=drive", "abc/123"},
		{"plain chat", "what's the release status?", ""},
		{"short 4/ fragment", "rated 4/5 stars", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractAuthorizationCode(tt.message))
		})
	}
}

func TestDriveExtractAndStoreConfig(t *testing.T) {
	ctx := context.Background()
	cfg, exchanger, _, creds := newDriveFixture(t)

	// Not configuration shaped: no match, no error
	confirmation, err := cfg.ExtractAndStoreConfig(ctx, "hello", "user-1")
	require.NoError(t, err)
	assert.Empty(t, confirmation)
	assert.False(t, cfg.IsConfigured(ctx, "user-1"))

	// Valid code: exchanged and stored
	confirmation, err = cfg.ExtractAndStoreConfig(ctx, "4/0AbCdEfGh_ijklMNOP", "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, confirmation)
	assert.Equal(t, "4/0AbCdEfGh_ijklMNOP", exchanger.lastCode)

	payload, found, err := creds.Get(ctx, ServiceDrive, "user-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "access-4/0AbCdEfGh_ijklMNOP", payload["access_token"])
	assert.True(t, cfg.IsConfigured(ctx, "user-1"))
}

func TestDriveExchangeFailureIsRecoverable(t *testing.T) {
	ctx := context.Background()
	cfg, exchanger, _, _ := newDriveFixture(t)
	exchanger.fail = true

	_, err := cfg.ExtractAndStoreConfig(ctx, "4/0AbCdEfGh_ijklMNOP", "user-1")
	require.Error(t, err)

	var recoverable *RecoverableConfigError
	assert.True(t, errors.As(err, &recoverable))
	assert.False(t, cfg.IsConfigured(ctx, "user-1"))
}

func TestDriveGetToolkitUnconfigured(t *testing.T) {
	ctx := context.Background()
	cfg, _, _, _ := newDriveFixture(t)

	_, err := cfg.GetToolkit(ctx, "user-1")
	require.Error(t, err)

	var violation *InvariantViolationError
	assert.True(t, errors.As(err, &violation))
}

func TestDriveConfigPromptContainsAuthURL(t *testing.T) {
	ctx := context.Background()
	cfg, _, _, _ := newDriveFixture(t)

	prompt := cfg.GetConfigPrompt(ctx, "user-1")
	assert.Contains(t, prompt, "accounts.google.com")
	assert.Contains(t, prompt, "client_id=client-id")
}

func TestJiraExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"my token is", "my jira token is abc123", "abc123"},
		{"colon form", "jira token: xyz789", "xyz789"},
		{"set form", "set jira token to token-456", "token-456"},
		{"mixed case", "My Jira token is SECRET_TOKEN", "SECRET_TOKEN"},
		{"trailing punctuation", "my jira token is abc123.", "abc123"},
		{"no match", "how do I get a jira token?", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJiraToken(tt.message))
		})
	}
}

func TestJiraExtractAndStoreConfig(t *testing.T) {
	ctx := context.Background()
	creds := credstore.NewMemoryStore()
	cfg := NewJiraConfig(creds, nil, "https://jira.example.com")

	confirmation, err := cfg.ExtractAndStoreConfig(ctx, "my jira token is test-token-12345", "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, confirmation)

	payload, found, err := creds.Get(ctx, ServiceJira, "user-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "test-token-12345", payload["token"])
	assert.True(t, cfg.IsConfigured(ctx, "user-1"))

	// Re-configuration overwrites, never duplicates
	_, err = cfg.ExtractAndStoreConfig(ctx, "my jira token is replacement-token", "user-1")
	require.NoError(t, err)
	payload, _, _ = creds.Get(ctx, ServiceJira, "user-1")
	assert.Equal(t, "replacement-token", payload["token"])
}

func TestJiraInvalidTokenIsRecoverable(t *testing.T) {
	ctx := context.Background()
	cfg := NewJiraConfig(credstore.NewMemoryStore(), nil, "https://jira.example.com")

	tests := []struct {
		name    string
		message string
	}{
		{"too short", "my jira token is ab"},
		{"bad charset", "my jira token is abc!!!123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cfg.ExtractAndStoreConfig(ctx, tt.message, "user-1")
			require.Error(t, err)

			var recoverable *RecoverableConfigError
			assert.True(t, errors.As(err, &recoverable))
			assert.False(t, cfg.IsConfigured(ctx, "user-1"))
		})
	}
}

func TestJiraSearchErrorIncludesBody(t *testing.T) {
	// Permission failures surface Jira's error payload, not just the
	// status code.
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"errorMessages":["You do not have permission to view these issues"]}`)
	}))
	t.Cleanup(srv.Close)

	creds := credstore.NewMemoryStore()
	require.NoError(t, creds.Upsert(ctx, ServiceJira, "user-1", map[string]string{"token": "tok-123456"}))
	cfg := NewJiraConfig(creds, nil, srv.URL)

	tk, err := cfg.GetToolkit(ctx, "user-1")
	require.NoError(t, err)

	_, err = tk.Call(ctx, map[string]any{"jql": "project = RHDH"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "You do not have permission")
}

func TestDriveExchangeErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Bad authorization code"}`)
	}))
	t.Cleanup(srv.Close)

	exchanger := NewOAuthTokenExchanger(nil, srv.URL, "client-id", "client-secret", "https://app.example.com/callback")

	_, _, err := exchanger.Exchange(context.Background(), "4/0AbCdEfGh_ijklMNOP")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad authorization code")
}

func TestPromptExtensionDependencyShortCircuit(t *testing.T) {
	ctx := context.Background()
	drive, _, fetcher, _ := newDriveFixture(t)
	ext := NewPromptExtensionConfig(drive, "https://docs.example.com/ops")

	// Drive unconfigured: not configured, no fetch attempted
	assert.False(t, ext.IsConfigured(ctx, "user-1"))

	instructions, err := ext.GetAgentInstructions(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, instructions)
	assert.Zero(t, fetcher.calls)

	// Configure drive: extension becomes configured
	_, err = drive.ExtractAndStoreConfig(ctx, "4/0AbCdEfGh_ijklMNOP", "user-1")
	require.NoError(t, err)
	assert.True(t, ext.IsConfigured(ctx, "user-1"))
}

func TestPromptExtensionWithoutDocURL(t *testing.T) {
	ctx := context.Background()
	drive, _, _, _ := newDriveFixture(t)
	_, err := drive.ExtractAndStoreConfig(ctx, "4/0AbCdEfGh_ijklMNOP", "user-1")
	require.NoError(t, err)

	ext := NewPromptExtensionConfig(drive, "")
	assert.False(t, ext.IsConfigured(ctx, "user-1"))
}

func TestPromptExtensionFetchAndCache(t *testing.T) {
	ctx := context.Background()
	drive, _, fetcher, _ := newDriveFixture(t)
	fetcher.content = "extended ops instructions"
	_, err := drive.ExtractAndStoreConfig(ctx, "4/0AbCdEfGh_ijklMNOP", "user-1")
	require.NoError(t, err)

	ext := NewPromptExtensionConfig(drive, "https://docs.example.com/ops")

	first, err := ext.GetAgentInstructions(ctx, "user-1")
	require.NoError(t, err)
	assert.Contains(t, first, "extended ops instructions")
	assert.Equal(t, 1, fetcher.calls)

	// Second call served from cache
	second, err := ext.GetAgentInstructions(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fetcher.calls)

	// Invalidation forces a refetch
	ext.InvalidateForDriveChange("user-1")
	_, err = ext.GetAgentInstructions(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestPromptExtensionFetchFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	drive, _, fetcher, _ := newDriveFixture(t)
	fetcher.err = fmt.Errorf("document not found")
	_, err := drive.ExtractAndStoreConfig(ctx, "4/0AbCdEfGh_ijklMNOP", "user-1")
	require.NoError(t, err)

	ext := NewPromptExtensionConfig(drive, "https://docs.example.com/ops")

	_, err = ext.GetAgentInstructions(ctx, "user-1")
	require.Error(t, err)

	var fatal *FatalConfigError
	assert.True(t, errors.As(err, &fatal))
}

func TestContribGuideNeverBlocks(t *testing.T) {
	ctx := context.Background()
	cfg := NewContribGuideConfig("")

	assert.False(t, cfg.IsRequired())
	assert.True(t, cfg.IsConfigured(ctx, "anyone"))
	assert.Empty(t, cfg.GetConfigPrompt(ctx, "anyone"))
	assert.Empty(t, cfg.CheckAuthorizationRequest(ctx, "how do I contribute?", "anyone"))

	assert.True(t, cfg.MatchesDomain("I want to contribute a plugin upstream"))
	assert.False(t, cfg.MatchesDomain("what's the weather"))

	tk, err := cfg.GetToolkit(ctx, "anyone")
	require.NoError(t, err)
	guide, err := tk.Call(ctx, nil)
	require.NoError(t, err)
	assert.Contains(t, guide, "pull request")
}
