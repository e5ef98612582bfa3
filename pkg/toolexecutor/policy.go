package toolexecutor

// ToolPolicy defines which tools are visible to the model.
type ToolPolicy struct {
	Allow []string `json:"allow"` // List of allowed tools (* for all)
	Deny  []string `json:"deny"`  // List of denied tools (overrides allow)
}

// NewAllowPolicy returns a policy allowing exactly the named tools.
// An empty list allows everything.
func NewAllowPolicy(names []string) *ToolPolicy {
	if len(names) == 0 {
		return nil
	}
	return &ToolPolicy{Allow: append([]string(nil), names...)}
}

// IsToolAllowed checks if a tool is allowed by the policy
func (tp *ToolPolicy) IsToolAllowed(toolName string) bool {
	if tp == nil {
		// No policy means allow all
		return true
	}

	// Check deny list first (overrides allow list)
	for _, denied := range tp.Deny {
		if denied == toolName || denied == "*" {
			return false
		}
	}

	for _, allowed := range tp.Allow {
		if allowed == toolName || allowed == "*" {
			return true
		}
	}

	return false
}
