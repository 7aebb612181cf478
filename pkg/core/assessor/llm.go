package assessor

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"finpulse/pkg/core/agent"
	"finpulse/pkg/core/calc"
	"finpulse/pkg/core/llm"
	"finpulse/pkg/core/logging"
	"finpulse/pkg/core/prompt"
	"finpulse/pkg/core/utils"
	"finpulse/pkg/models"
)

// Executor sends a rendered prompt to whichever provider serves a role.
// *agent.Manager satisfies it.
type Executor interface {
	ExecutePrompt(ctx context.Context, agentType string, rawPrompt string, rawSystemPrompt string, options map[string]interface{}) (string, error)
}

// LLMAssessor asks a language model for the assessment and enforces the
// reply contract locally.
type LLMAssessor struct {
	exec    Executor
	prompts *prompt.Registry
	tenures calc.TenurePolicy
	role    string
	log     *logrus.Entry
}

type Option func(*LLMAssessor)

func WithPrompts(r *prompt.Registry) Option { return func(a *LLMAssessor) { a.prompts = r } }

func WithTenurePolicy(p calc.TenurePolicy) Option { return func(a *LLMAssessor) { a.tenures = p } }

func WithRole(role string) Option { return func(a *LLMAssessor) { a.role = role } }

func WithLogger(l *logrus.Entry) Option { return func(a *LLMAssessor) { a.log = l } }

func NewLLMAssessor(exec Executor, opts ...Option) *LLMAssessor {
	a := &LLMAssessor{
		exec:    exec,
		tenures: calc.DefaultTenurePolicy(),
		role:    agent.RoleAssessment,
	}
	for _, o := range opts {
		o(a)
	}
	if a.prompts == nil {
		a.prompts = prompt.Get()
	}
	if a.log == nil {
		a.log = logging.For("assessor")
	}
	return a
}

// Assess renders the audit prompt, calls the provider once and decodes the
// reply. Provider errors are returned unwrapped enough for classification;
// reply problems become *ContractError.
func (a *LLMAssessor) Assess(ctx context.Context, data models.FinancialData, history HistorySummary) (models.AssessmentResult, error) {
	pctx := prompt.NewContext().
		Set("Data", data).
		Set("MonthlyEMI", calc.Sum(data.ExistingEMIs...)).
		Set("HistoricalContext", history.ContextLine()).
		Set("Tenures", joinMonths(a.tenures.Months))

	system, user, err := a.prompts.Render(prompt.PromptIDs.AssessmentSMEAudit, pctx)
	if err != nil {
		// a broken template will not fix itself on retry
		return models.AssessmentResult{}, &ContractError{Err: fmt.Errorf("render prompt: %w", err)}
	}

	raw, err := a.exec.ExecutePrompt(ctx, a.role, user, system, map[string]interface{}{
		llm.OptResponseSchema: ResponseSchema(),
	})
	if err != nil {
		return models.AssessmentResult{}, fmt.Errorf("assessment call: %w", err)
	}
	return decode(raw, a.log)
}

func decode(raw string, log *logrus.Entry) (models.AssessmentResult, error) {
	if strings.TrimSpace(raw) == "" {
		return models.AssessmentResult{}, &ContractError{Err: fmt.Errorf("empty reply")}
	}
	var w wireResult
	if _, err := utils.SmartParse(raw, &w); err != nil {
		log.WithField("reply_bytes", len(raw)).Warn("assessment reply is not JSON")
		return models.AssessmentResult{}, &ContractError{Err: err}
	}
	if err := w.check(); err != nil {
		log.WithError(err).Warn("assessment reply failed contract check")
		return models.AssessmentResult{}, err
	}
	return w.model(), nil
}

func joinMonths(months []int) string {
	parts := make([]string, len(months))
	for i, m := range months {
		parts[i] = fmt.Sprint(m)
	}
	return strings.Join(parts, ", ")
}
