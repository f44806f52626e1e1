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
// DRIVE (OAUTH) TOOLKIT
// ============================================================================

// ServiceDrive is the credential store key for document-store access.
const ServiceDrive = "drive"

// Authorization codes arrive either as a bare Google-style code or inside
// a pasted redirect URL.
var (
	driveBareCodePattern = regexp.MustCompile(`\b4/[0-9A-Za-z_-]{10,}`)
	driveURLCodePattern  = regexp.MustCompile(`[?&]code=([^&\s]+)`)
)

// TokenExchanger swaps an authorization code for OAuth tokens. The OAuth
// flow itself is an external collaborator.
type TokenExchanger interface {
	Exchange(ctx context.Context, code string) (accessToken, refreshToken string, err error)
}

// DocumentFetcher retrieves a document's text content by URL using the
// user's access token.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, docURL, accessToken string) (string, error)
}

// DriveConfig manages OAuth-backed document-store access. Required:
// the agent does not run until the user completes the authorization flow.
type DriveConfig struct {
	creds       credstore.Store
	exchanger   TokenExchanger
	fetcher     DocumentFetcher
	clientID    string
	redirectURI string
}

// NewDriveConfig creates the drive configuration unit.
func NewDriveConfig(creds credstore.Store, exchanger TokenExchanger, fetcher DocumentFetcher, clientID, redirectURI string) *DriveConfig {
	return &DriveConfig{
		creds:       creds,
		exchanger:   exchanger,
		fetcher:     fetcher,
		clientID:    clientID,
		redirectURI: redirectURI,
	}
}

func (c *DriveConfig) Name() string { return ServiceDrive }

func (c *DriveConfig) IsRequired() bool { return true }

func (c *DriveConfig) IsConfigured(ctx context.Context, userID string) bool {
	payload, found, err := c.creds.Get(ctx, ServiceDrive, userID)
	if err != nil || !found {
		return false
	}
	return payload["access_token"] != ""
}

func (c *DriveConfig) CheckAuthorizationRequest(ctx context.Context, message, userID string) string {
	if c.IsConfigured(ctx, userID) {
		return ""
	}
	if extractAuthorizationCode(message) != "" {
		// The message carries a code; extraction will handle it
		return ""
	}

	keywords := []string{"drive", "document", "spreadsheet", "presentation"}
	lower := strings.ToLower(message)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return c.GetConfigPrompt(ctx, userID)
		}
	}
	return ""
}

func (c *DriveConfig) ExtractAndStoreConfig(ctx context.Context, message, userID string) (string, error) {
	code := extractAuthorizationCode(message)
	if code == "" {
		return "", nil
	}

	accessToken, refreshToken, err := c.exchanger.Exchange(ctx, code)
	if err != nil {
		return "", NewRecoverableConfigError(ServiceDrive,
			"the authorization code could not be exchanged, it may be expired or already used")
	}

	payload := map[string]string{"access_token": accessToken}
	if refreshToken != "" {
		payload["refresh_token"] = refreshToken
	}
	if err := c.creds.Upsert(ctx, ServiceDrive, userID, payload); err != nil {
		return "", fmt.Errorf("failed to store drive credentials: %w", err)
	}

	return "Document store access authorized. You can now ask me about your documents.", nil
}

func (c *DriveConfig) GetConfigPrompt(ctx context.Context, userID string) string {
	authURL := c.buildAuthURL()
	return "To access your documents I need authorization.\n\n" +
		"1. Open this link and grant access:\n" + authURL + "\n" +
		"2. Copy the authorization code you receive.\n" +
		"3. Paste the code here as your next message."
}

func (c *DriveConfig) GetToolkit(ctx context.Context, userID string) (Toolkit, error) {
	payload, found, err := c.creds.Get(ctx, ServiceDrive, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read drive credentials: %w", err)
	}
	if !found || payload["access_token"] == "" {
		return nil, NewInvariantViolationError(ServiceDrive, "toolkit requested while unconfigured")
	}
	return &driveToolkit{fetcher: c.fetcher, accessToken: payload["access_token"]}, nil
}

func (c *DriveConfig) GetAgentInstructions(ctx context.Context, userID string) ([]string, error) {
	if !c.IsConfigured(ctx, userID) {
		return nil, nil
	}
	return []string{
		"You have access to a document-store tool that can download and read " +
			"documents, sheets, and presentations the user has shared. Use it " +
			"when the user asks about their documents.",
	}, nil
}

func (c *DriveConfig) buildAuthURL() string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", c.redirectURI)
	q.Set("response_type", "code")
	q.Set("access_type", "offline")
	q.Set("scope", strings.Join([]string{
		"https://www.googleapis.com/auth/drive.readonly",
		"https://www.googleapis.com/auth/documents.readonly",
	}, " "))
	return "https://accounts.google.com/o/oauth2/v2/auth?" + q.Encode()
}

// extractAuthorizationCode finds an OAuth authorization code in free text.
func extractAuthorizationCode(message string) string {
	if m := driveURLCodePattern.FindStringSubmatch(message); m != nil {
		if decoded, err := url.QueryUnescape(m[1]); err == nil {
			return decoded
		}
		return m[1]
	}
	return driveBareCodePattern.FindString(message)
}

// driveToolkit fetches document content with the user's token.
type driveToolkit struct {
	fetcher     DocumentFetcher
	accessToken string
}

func (t *driveToolkit) Name() string { return "fetch_document" }

func (t *driveToolkit) Description() string {
	return "Download and read the text content of a document by URL"
}

func (t *driveToolkit) Call(ctx context.Context, args map[string]any) (string, error) {
	docURL, _ := args["url"].(string)
	if docURL == "" {
		return "", fmt.Errorf("fetch_document requires a url argument")
	}
	return t.fetcher.FetchDocument(ctx, docURL, t.accessToken)
}

// OAuthTokenExchanger exchanges authorization codes against a standard
// OAuth token endpoint.
type OAuthTokenExchanger struct {
	client       *httpclient.Client
	tokenURL     string
	clientID     string
	clientSecret string
	redirectURI  string
}

// NewOAuthTokenExchanger creates an exchanger for the given token
// endpoint. An empty tokenURL targets Google's endpoint.
func NewOAuthTokenExchanger(client *httpclient.Client, tokenURL, clientID, clientSecret, redirectURI string) *OAuthTokenExchanger {
	if client == nil {
		client = httpclient.New()
	}
	if tokenURL == "" {
		tokenURL = "https://oauth2.googleapis.com/token"
	}
	return &OAuthTokenExchanger{
		client:       client,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
	}
}

func (e *OAuthTokenExchanger) Exchange(ctx context.Context, code string) (string, string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", e.clientID)
	form.Set("client_secret", e.clientSecret)
	form.Set("redirect_uri", e.redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(req)
	if err != nil {
		// Even on error, read the response body for better error messages
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if len(body) > 0 {
				return "", "", fmt.Errorf("token exchange failed: %w - response: %s", err, string(body))
			}
		}
		return "", "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("token exchange failed with status %d", resp.StatusCode)
	}

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return "", "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokens.AccessToken == "" {
		return "", "", fmt.Errorf("token endpoint returned no access token")
	}
	return tokens.AccessToken, tokens.RefreshToken, nil
}

// HTTPDocumentFetcher implements DocumentFetcher over plain HTTP export
// endpoints.
type HTTPDocumentFetcher struct {
	client *httpclient.Client
}

// NewHTTPDocumentFetcher creates a fetcher backed by the retrying client.
func NewHTTPDocumentFetcher(client *httpclient.Client) *HTTPDocumentFetcher {
	if client == nil {
		client = httpclient.New()
	}
	return &HTTPDocumentFetcher{client: client}
}

func (f *HTTPDocumentFetcher) FetchDocument(ctx context.Context, docURL, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create document request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := f.client.Do(req)
	if err != nil {
		// Even on error, read the response body for better error messages
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if len(body) > 0 {
				return "", fmt.Errorf("failed to fetch document: %w - response: %s", err, string(body))
			}
		}
		return "", fmt.Errorf("failed to fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("document fetch failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read document body: %w", err)
	}
	return string(body), nil
}

// Compile-time interface checks
var (
	_ Config          = (*DriveConfig)(nil)
	_ Toolkit         = (*driveToolkit)(nil)
	_ DocumentFetcher = (*HTTPDocumentFetcher)(nil)
	_ TokenExchanger  = (*OAuthTokenExchanger)(nil)
)
