package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/agentllm/agentllm/credstore"
	"github.com/agentllm/agentllm/internal/httpclient"
)

// ============================================================================
// JIRA (STATIC TOKEN) TOOLKIT
// ============================================================================

// ServiceJira is the credential store key for issue-tracker access.
const ServiceJira = "jira"

// Token statements users actually type: "my jira token is X",
// "jira token: X", "set jira token to X".
var jiraTokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)my\s+jira\s+token\s+is\s+(\S+)`),
	regexp.MustCompile(`(?i)jira\s+token\s*:\s*(\S+)`),
	regexp.MustCompile(`(?i)set\s+jira\s+token\s+to\s+(\S+)`),
}

var jiraTokenCharset = regexp.MustCompile(`^[0-9A-Za-z_=.-]+$`)

const jiraTokenMinLength = 6

// JiraConfig manages static-token issue-tracker access. Required.
type JiraConfig struct {
	creds   credstore.Store
	client  *httpclient.Client
	baseURL string
}

// NewJiraConfig creates the Jira configuration unit. baseURL points at
// the Jira instance the materialized toolkit will query.
func NewJiraConfig(creds credstore.Store, client *httpclient.Client, baseURL string) *JiraConfig {
	if client == nil {
		client = httpclient.New()
	}
	return &JiraConfig{
		creds:   creds,
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (c *JiraConfig) Name() string { return ServiceJira }

func (c *JiraConfig) IsRequired() bool { return true }

func (c *JiraConfig) IsConfigured(ctx context.Context, userID string) bool {
	payload, found, err := c.creds.Get(ctx, ServiceJira, userID)
	if err != nil || !found {
		return false
	}
	return payload["token"] != ""
}

func (c *JiraConfig) CheckAuthorizationRequest(ctx context.Context, message, userID string) string {
	if c.IsConfigured(ctx, userID) {
		return ""
	}
	lower := strings.ToLower(message)
	if strings.Contains(lower, "jira") || strings.Contains(lower, "issue") || strings.Contains(lower, "ticket") {
		return c.GetConfigPrompt(ctx, userID)
	}
	return ""
}

func (c *JiraConfig) ExtractAndStoreConfig(ctx context.Context, message, userID string) (string, error) {
	token := extractJiraToken(message)
	if token == "" {
		return "", nil
	}

	if len(token) < jiraTokenMinLength {
		return "", NewRecoverableConfigError(ServiceJira,
			fmt.Sprintf("the token looks too short (minimum %d characters)", jiraTokenMinLength))
	}
	if !jiraTokenCharset.MatchString(token) {
		return "", NewRecoverableConfigError(ServiceJira,
			"the token contains unexpected characters, please paste it exactly as issued")
	}

	if err := c.creds.Upsert(ctx, ServiceJira, userID, map[string]string{"token": token}); err != nil {
		return "", fmt.Errorf("failed to store jira token: %w", err)
	}

	return "Jira token stored. I can now search and analyze issues for you.", nil
}

func (c *JiraConfig) GetConfigPrompt(ctx context.Context, userID string) string {
	return "I need a Jira API token to query issues on your behalf.\n\n" +
		"Create a personal access token in your Jira profile settings, then " +
		"send it to me like: \"my jira token is <token>\"."
}

func (c *JiraConfig) GetToolkit(ctx context.Context, userID string) (Toolkit, error) {
	payload, found, err := c.creds.Get(ctx, ServiceJira, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read jira credentials: %w", err)
	}
	if !found || payload["token"] == "" {
		return nil, NewInvariantViolationError(ServiceJira, "toolkit requested while unconfigured")
	}
	return &jiraToolkit{client: c.client, baseURL: c.baseURL, token: payload["token"]}, nil
}

func (c *JiraConfig) GetAgentInstructions(ctx context.Context, userID string) ([]string, error) {
	if !c.IsConfigured(ctx, userID) {
		return nil, nil
	}
	return []string{
		"You have access to a Jira search tool. Use it to query and analyze " +
			"issues, epics, features, bugs, and CVEs when the user asks about " +
			"release status or tracking.",
	}, nil
}

// extractJiraToken finds a token statement in free text.
func extractJiraToken(message string) string {
	for _, pattern := range jiraTokenPatterns {
		if m := pattern.FindStringSubmatch(message); m != nil {
			return strings.TrimRight(m[1], ".,;!?")
		}
	}
	return ""
}

// jiraToolkit searches issues via the Jira REST API.
type jiraToolkit struct {
	client  *httpclient.Client
	baseURL string
	token   string
}

func (t *jiraToolkit) Name() string { return "search_issues" }

func (t *jiraToolkit) Description() string {
	return "Search Jira issues with a JQL query"
}

func (t *jiraToolkit) Call(ctx context.Context, args map[string]any) (string, error) {
	jql, _ := args["jql"].(string)
	if jql == "" {
		return "", fmt.Errorf("search_issues requires a jql argument")
	}

	endpoint := t.baseURL + "/rest/api/2/search?jql=" + url.QueryEscape(jql)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// Even on error, read the response body for better error messages
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if len(body) > 0 {
				return "", fmt.Errorf("jira search failed: %w - response: %s", err, string(body))
			}
		}
		return "", fmt.Errorf("jira search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("jira search failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read search response: %w", err)
	}

	// Validate the payload is JSON before handing it to the model
	if !json.Valid(body) {
		return "", fmt.Errorf("jira returned a malformed response")
	}
	return string(body), nil
}

// Compile-time interface checks
var (
	_ Config  = (*JiraConfig)(nil)
	_ Toolkit = (*jiraToolkit)(nil)
)
