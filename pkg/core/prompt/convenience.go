package prompt

// PromptIDs contains all known prompt identifiers
var PromptIDs = struct {
	AssessmentSMEAudit string
}{
	AssessmentSMEAudit: "assessment.sme_audit",
}

// Render looks up a prompt and returns its system prompt and rendered user prompt.
func (r *Registry) Render(id string, ctx *PromptExecutionContext) (system, user string, err error) {
	pt, err := r.GetPrompt(id)
	if err != nil {
		return "", "", err
	}
	user, err = RenderUserPrompt(pt, ctx)
	if err != nil {
		return "", "", err
	}
	return pt.SystemPrompt, user, nil
}
