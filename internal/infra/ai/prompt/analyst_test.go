package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/policy-analysis/internal/domain/jobs"
)

func TestGetSystemPrompt_IndustryFallback(t *testing.T) {
	health := GetSystemPrompt("Healthcare", false)
	assert.Contains(t, health, "HIPAA Breach Response")
	assert.NotContains(t, health, "GENERAL ANALYSIS FRAMEWORK")

	unknown := GetSystemPrompt("Space Mining", false)
	assert.Contains(t, unknown, "GENERAL ANALYSIS FRAMEWORK")
	assert.Contains(t, unknown, Firm)
	assert.Contains(t, unknown, "BIND WITH CONDITIONS")
	assert.Contains(t, unknown, "overall_maturity_score")
}

func TestGetSystemPrompt_Renewal(t *testing.T) {
	assert.Contains(t, GetSystemPrompt(jobs.DefaultIndustry, true), "RENEWAL policy")
	assert.NotContains(t, GetSystemPrompt(jobs.DefaultIndustry, false), "RENEWAL policy")
}

func TestGetUserPrompt(t *testing.T) {
	p := GetUserPrompt("SECTION I. INSURING AGREEMENTS", jobs.Subject{
		Name: "Acme Corp", Industry: "Manufacturing", PolicyType: "cyber", Renewal: true,
	})
	assert.Contains(t, p, "Acme Corp")
	assert.Contains(t, p, "**Client Industry:** Manufacturing")
	assert.Contains(t, p, "**Renewal:** Yes")
	assert.Contains(t, p, "SECTION I. INSURING AGREEMENTS")
}
