package toolkit

import (
	"context"
	"sync"
)

// ============================================================================
// INSTRUCTION EXTENSION (DERIVED) TOOLKIT
// ============================================================================

// ServicePromptExtension is the name of the externally maintained
// instruction document toolkit. It derives from drive access: there is no
// credential of its own and no per-user prompt.
const ServicePromptExtension = "prompt_extension"

// PromptExtensionConfig fetches an externally maintained instruction
// document through the drive toolkit and appends it to the agent's
// instruction set. Required when a document URL is set; silent otherwise.
type PromptExtensionConfig struct {
	drive  *DriveConfig
	docURL string

	mu    sync.Mutex
	cache map[string][]string // per-user fetched instructions
}

// NewPromptExtensionConfig creates the instruction extension unit.
// docURL comes from the deployment environment; empty disables the toolkit.
func NewPromptExtensionConfig(drive *DriveConfig, docURL string) *PromptExtensionConfig {
	return &PromptExtensionConfig{
		drive:  drive,
		docURL: docURL,
		cache:  make(map[string][]string),
	}
}

func (c *PromptExtensionConfig) Name() string { return ServicePromptExtension }

func (c *PromptExtensionConfig) IsRequired() bool { return true }

// IsConfigured short-circuits on the drive dependency: when drive access
// is missing this reports false without attempting a fetch, so the drive
// config handles all prompting.
func (c *PromptExtensionConfig) IsConfigured(ctx context.Context, userID string) bool {
	if c.docURL == "" {
		return false
	}
	return c.drive.IsConfigured(ctx, userID)
}

// CheckAuthorizationRequest stays silent; authorization belongs to drive.
func (c *PromptExtensionConfig) CheckAuthorizationRequest(ctx context.Context, message, userID string) string {
	return ""
}

// ExtractAndStoreConfig stays silent; nothing is extractable from messages.
func (c *PromptExtensionConfig) ExtractAndStoreConfig(ctx context.Context, message, userID string) (string, error) {
	return "", nil
}

// GetConfigPrompt stays silent; the drive config prompts for the
// dependency.
func (c *PromptExtensionConfig) GetConfigPrompt(ctx context.Context, userID string) string {
	return ""
}

// GetToolkit provides no materialized tool; the extension only
// contributes instructions.
func (c *PromptExtensionConfig) GetToolkit(ctx context.Context, userID string) (Toolkit, error) {
	if !c.IsConfigured(ctx, userID) {
		return nil, NewInvariantViolationError(ServicePromptExtension, "toolkit requested while unconfigured")
	}
	return nil, nil
}

// GetAgentInstructions fetches the extension document once per user and
// caches it. A fetch failure after the dependency is configured is fatal:
// the user already did everything right, retrying the same message cannot
// fix it.
func (c *PromptExtensionConfig) GetAgentInstructions(ctx context.Context, userID string) ([]string, error) {
	if !c.IsConfigured(ctx, userID) {
		return nil, nil
	}

	c.mu.Lock()
	cached, ok := c.cache[userID]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	driveToolkit, err := c.drive.GetToolkit(ctx, userID)
	if err != nil {
		return nil, NewFatalConfigError(ServicePromptExtension, "document-store toolkit unavailable", err)
	}

	content, err := driveToolkit.Call(ctx, map[string]any{"url": c.docURL})
	if err != nil {
		return nil, NewFatalConfigError(ServicePromptExtension, "failed to fetch extended instructions", err)
	}
	if content == "" {
		return nil, NewFatalConfigError(ServicePromptExtension, "extended instruction document is empty", nil)
	}

	instructions := []string{
		"",
		"## EXTENDED SYSTEM PROMPT",
		"The following operational instructions are maintained externally at " + c.docURL + ":",
		"",
		content,
	}

	c.mu.Lock()
	c.cache[userID] = instructions
	c.mu.Unlock()

	return instructions, nil
}

// InvalidateForDriveChange drops the cached document for a user. Called
// when the user re-authorizes drive access, since the new credentials may
// see a different document.
func (c *PromptExtensionConfig) InvalidateForDriveChange(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, userID)
}

// DependsOn reports the drive config this extension derives from.
func (c *PromptExtensionConfig) DependsOn() Config {
	return c.drive
}

// Compile-time interface check
var _ Config = (*PromptExtensionConfig)(nil)
