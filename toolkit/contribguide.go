package toolkit

import (
	"context"
	"strings"
)

// ============================================================================
// CONTRIBUTION GUIDE (OPTIONAL) TOOLKIT
// ============================================================================

// ServiceContribGuide is the name of the contribution guidance toolkit.
// It needs no credentials and never blocks a request.
const ServiceContribGuide = "contrib_guide"

var contribKeywords = []string{
	"contribute",
	"contribution",
	"upstream",
	"pull request",
	"community plugin",
}

// ContribGuideConfig offers public contribution guidance. Always
// configured; optional by definition.
type ContribGuideConfig struct {
	guide string
}

// NewContribGuideConfig creates the contribution guide unit with the
// given guidance text.
func NewContribGuideConfig(guide string) *ContribGuideConfig {
	if guide == "" {
		guide = defaultContribGuide
	}
	return &ContribGuideConfig{guide: guide}
}

func (c *ContribGuideConfig) Name() string { return ServiceContribGuide }

func (c *ContribGuideConfig) IsRequired() bool { return false }

func (c *ContribGuideConfig) IsConfigured(ctx context.Context, userID string) bool {
	return true
}

// CheckAuthorizationRequest matches contribution-related keywords but
// never prompts: the toolkit needs no setup.
func (c *ContribGuideConfig) CheckAuthorizationRequest(ctx context.Context, message, userID string) string {
	return ""
}

// MatchesDomain reports whether the message invokes contribution topics.
func (c *ContribGuideConfig) MatchesDomain(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range contribKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (c *ContribGuideConfig) ExtractAndStoreConfig(ctx context.Context, message, userID string) (string, error) {
	return "", nil
}

func (c *ContribGuideConfig) GetConfigPrompt(ctx context.Context, userID string) string {
	return ""
}

func (c *ContribGuideConfig) GetToolkit(ctx context.Context, userID string) (Toolkit, error) {
	return &contribGuideToolkit{guide: c.guide}, nil
}

func (c *ContribGuideConfig) GetAgentInstructions(ctx context.Context, userID string) ([]string, error) {
	return []string{
		"When the user asks about contributing changes upstream, use the " +
			"contribution guide tool to give process guidance.",
	}, nil
}

type contribGuideToolkit struct {
	guide string
}

func (t *contribGuideToolkit) Name() string { return "contribution_guide" }

func (t *contribGuideToolkit) Description() string {
	return "Return the project's contribution process guidance"
}

func (t *contribGuideToolkit) Call(ctx context.Context, args map[string]any) (string, error) {
	return t.guide, nil
}

const defaultContribGuide = `Contribution process:
1. Fork the repository and create a feature branch.
2. Keep changes focused; open an issue first for larger work.
3. Run the test suite before opening a pull request.
4. Reference the related issue in the pull request description.`

// Compile-time interface checks
var (
	_ Config  = (*ContribGuideConfig)(nil)
	_ Toolkit = (*contribGuideToolkit)(nil)
)
