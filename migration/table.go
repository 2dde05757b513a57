package migration

const (
	// LegacyPrefix is the root of the unversioned API tree.
	LegacyPrefix = "/api/"
	// VersionedPrefix is the root of the versioned API tree.
	VersionedPrefix = "/api/v1/"
)

// Route is one entry of the route table. Legacy may contain ${name}
// placeholders, in which case the route is matched as a template.
type Route struct {
	Legacy    string
	Versioned string
}

// Table is the full rule set handed to New. Routes are tried first as exact
// matches, then (those with placeholders) as templates, in slice order.
// Patterns are tried last, also in slice order.
type Table struct {
	Routes   []Route
	Patterns []RegexRule
}

// DefaultTable returns the route table for the CRM backend. Routes whose
// versioned path only differs by prefix are listed where callers rely on them
// being explicit; the rest are covered by the prefix fallback.
func DefaultTable() Table {
	return Table{
		Routes: []Route{
			// Agents
			{"/api/agents", "/api/v1/agents"},
			{"/api/agents/create", "/api/v1/agents"},
			{"/api/agents/list", "/api/v1/agents"},
			{"/api/agents/${id}", "/api/v1/agents/${id}"},
			{"/api/agents/${id}/update", "/api/v1/agents/${id}"},
			{"/api/agents/${id}/delete", "/api/v1/agents/${id}"},
			{"/api/agents/${id}/status", "/api/v1/agents/${id}/status"},
			{"/api/agents/${id}/toggle-status", "/api/v1/agents/${id}/status"},

			// Leads
			{"/api/leads", "/api/v1/leads"},
			{"/api/leads/create", "/api/v1/leads"},
			{"/api/leads/${id}", "/api/v1/leads/${id}"},
			{"/api/leads/${id}/update", "/api/v1/leads/${id}"},
			{"/api/leads/${id}/assign-agent", "/api/v1/leads/${id}/assign-agent"},
			{"/api/leads/${id}/add-note", "/api/v1/leads/${id}/notes"},
			{"/api/leads/${id}/update-status", "/api/v1/leads/${id}/status"},
			{"/api/leads/bulk-import", "/api/v1/leads/import"},

			// Conversations and messaging
			{"/api/conversations", "/api/v1/conversations"},
			{"/api/conversations/${id}", "/api/v1/conversations/${id}"},
			{"/api/conversations/${id}/send-message", "/api/v1/conversations/${id}/messages"},
			{"/api/conversations/${id}/get-messages", "/api/v1/conversations/${id}/messages"},
			{"/api/conversations/${id}/mark-read", "/api/v1/conversations/${id}/read"},
			{"/api/conversations/${id}/close", "/api/v1/conversations/${id}/status"},

			// Handoff
			{"/api/handoff/pending", "/api/v1/handoffs?status=pending"},
			{"/api/handoff/request", "/api/v1/handoffs"},
			{"/api/conversations/${id}/handoff", "/api/v1/conversations/${id}/handoff"},

			// Organizations
			{"/api/organization", "/api/v1/organizations/current"},
			{"/api/organization/settings", "/api/v1/organizations/current/settings"},
			{"/api/organizations/${orgId}/members", "/api/v1/organizations/${orgId}/members"},
			{"/api/organizations/${orgId}/members/${userId}", "/api/v1/organizations/${orgId}/members/${userId}"},
			{"/api/organizations/${orgId}/invite", "/api/v1/organizations/${orgId}/invitations"},

			// Users and notifications
			{"/api/auth/me", "/api/v1/users/me"},
			{"/api/user/profile", "/api/v1/users/me"},
			{"/api/notifications/mark-all-read", "/api/v1/notifications/read-all"},
			{"/api/notifications/${id}/mark-read", "/api/v1/notifications/${id}/read"},

			// Dashboard
			{"/api/dashboard/stats", "/api/v1/analytics/overview"},
		},
		Patterns: []RegexRule{
			MustRegexRule(`^/api/handoff/([^/]+)/(accept|reject|complete)$`,
				"/api/v1/handoffs/${1}/${2}",
				"handoff actions moved under the plural handoffs resource"),
			MustRegexRule(`^/api/handoff/([^/]+)$`,
				"/api/v1/handoffs/${1}",
				"single handoff moved under the plural handoffs resource"),
			MustRegexRule(`^/api/agents/([^/]+)/conversations/?$`,
				"/api/v1/conversations?agentId=${1}",
				"agent conversation list became a filtered conversation collection"),
			MustRegexRule(`^/api/leads/([^/]+)/notes/([^/]+)/(edit|delete)$`,
				"/api/v1/leads/${1}/notes/${2}",
				"note edit/delete verbs collapsed into the note resource"),
			MustRegexRule(`^/api/analytics/report/([a-z0-9-]+)$`,
				"/api/v1/analytics/reports/${1}",
				"analytics report renamed to plural reports"),
			MustRegexRule(`^/api/webhooks/([a-z0-9-]+)/test$`,
				"/api/v1/webhooks/${1}/deliveries/test",
				"webhook test became a test delivery"),
		},
	}
}
