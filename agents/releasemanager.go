// Package agents holds the concrete agent definitions shipped with the
// gateway. Each definition binds an ordered toolkit list and base
// instructions to the shared registry dependencies.
package agents

import (
	"os"

	"github.com/agentllm/agentllm/agent"
	"github.com/agentllm/agentllm/toolkit"
)

// ============================================================================
// RELEASE MANAGER
// ============================================================================

// Environment prerequisites for the release-manager agent. Checked by
// the registry before the first message is accepted.
const (
	EnvDriveClientID     = "GDRIVE_CLIENT_ID"
	EnvDriveClientSecret = "GDRIVE_CLIENT_SECRET"
	EnvDriveRedirectURI  = "GDRIVE_REDIRECT_URI"
	EnvSystemPromptURL   = "RELEASE_MANAGER_SYSTEM_PROMPT_GDRIVE_URL"
	EnvJiraURL           = "JIRA_URL"
)

var releaseManagerInstructions = []string{
	"You are the Release Manager for Red Hat Developer Hub (RHDH).",
	"Your core responsibilities include:",
	"- Managing Y-stream releases (major versions like 1.7.0, 1.8.0)",
	"- Managing Z-stream releases (maintenance versions like 1.6.1, 1.6.2)",
	"- Tracking release progress, risks, and blockers",
	"- Coordinating with Engineering, QE, Documentation, and Product Management teams",
	"- Providing release status updates for meetings (SOS, Team Forum, Program Meeting)",
	"- Monitoring Jira for release-related issues, features, and bugs",
	"",
	"Available tools:",
	"- Jira: Query and analyze issues, epics, features, bugs, and CVEs",
	"- Google Drive: Access release schedules, test plans, documentation plans, and feature demos",
	"",
	"Output guidelines:",
	"- Use markdown formatting for all structured output",
	"- Be concise but comprehensive in your responses",
	"- Provide data-driven insights with Jira query results and metrics",
	"- Include relevant links to Jira issues, and Google Docs resources",
	"- Use tables and bullet points for clarity",
	"",
	"Behavioral guidelines:",
	"- Proactively identify risks and blockers",
	"- Escalate critical issues with clear impact analysis",
	"- Base recommendations on concrete data (Jira metrics, test results, schedules)",
	"- Maintain professional communication appropriate for cross-functional stakeholders",
	"- Follow established release processes and policies",
	"",
	"System Prompt Management:",
	"- Your instructions come from TWO sources:",
	"  1. Embedded system prompt (stable, rarely changes): Core identity and capabilities",
	"  2. External system prompt (dynamic, frequently updated): Current release context, processes, examples",
	"- The external prompt is stored in a Google Drive document that users can directly edit",
	"- When release context seems outdated or incomplete, suggest users update the external prompt",
	"- If configured, you will be informed of the external prompt document URL in your extended instructions",
}

// ReleaseManager returns the release-manager agent definition.
//
// Toolkit order matters: the prompt-extension config depends on the
// drive config and must come after it.
func ReleaseManager() *agent.Definition {
	return &agent.Definition{
		Metadata: agent.Metadata{
			Name:        "release-manager",
			Description: "Release management assistant with Jira and document-store access",
			Mode:        "agent",
			RequiresEnv: []string{
				EnvDriveClientID,
				EnvDriveClientSecret,
				EnvDriveRedirectURI,
				EnvSystemPromptURL,
				EnvJiraURL,
			},
		},
		New: func(deps agent.Deps, params agent.Params) (*agent.Configurator, error) {
			exchanger := toolkit.NewOAuthTokenExchanger(nil, "",
				os.Getenv(EnvDriveClientID),
				os.Getenv(EnvDriveClientSecret),
				os.Getenv(EnvDriveRedirectURI))
			fetcher := toolkit.NewHTTPDocumentFetcher(nil)

			drive := toolkit.NewDriveConfig(deps.Creds, exchanger, fetcher,
				os.Getenv(EnvDriveClientID), os.Getenv(EnvDriveRedirectURI))
			jira := toolkit.NewJiraConfig(deps.Creds, nil, os.Getenv(EnvJiraURL))
			promptExt := toolkit.NewPromptExtensionConfig(drive, os.Getenv(EnvSystemPromptURL))
			contrib := toolkit.NewContribGuideConfig("")

			configurator := agent.NewConfigurator(
				"release-manager",
				"Release management assistant with Jira and document-store access",
				releaseManagerInstructions,
				[]toolkit.Config{drive, jira, promptExt, contrib},
				deps.Engine, deps.History, params)

			// New drive credentials invalidate the fetched external
			// prompt so it is re-read with the fresh token.
			configurator.OnCredentialStored(func(service, userID string) {
				if service == toolkit.ServiceDrive {
					promptExt.InvalidateForDriveChange(userID)
				}
			})

			return configurator, nil
		},
	}
}
