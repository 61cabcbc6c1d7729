package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/policy-analysis/internal/domain/jobs"
)

// Firm is the advisory named in prompts and on reports.
const Firm = "Rhône Risk Advisory"

const coverageCategories = `## COVERAGE CATEGORIES TO ANALYZE

### First-Party Coverages
1. Breach Response & Crisis Management
2. Business Interruption
3. Data Recovery & Restoration
4. Cyber Extortion/Ransomware
5. Social Engineering/Funds Transfer Fraud
6. Reputational Harm
7. System Failure (non-malicious)

### Third-Party Coverages
8. Privacy Liability
9. Network Security Liability
10. Technology E&O (Professional Services)
11. Media Liability
12. Regulatory Defense & Penalties
13. PCI-DSS Fines & Assessments
14. Contractual Liability`

const scoringScale = `## MATURITY SCORING SCALE (0-10)

| Score | Rating | Description |
|-------|--------|-------------|
| 9-10  | Superior | Best-in-class coverage, no significant limitations |
| 7-8   | Strong | Above-average coverage, minor limitations |
| 5-6   | Average | Standard market terms, some gaps |
| 3-4   | Basic | Significant limitations or gaps |
| 1-2   | Poor | Major gaps, substantial risk exposure |
| 0     | None | Not covered or explicitly excluded |

Score every coverage on five factors:
1. Sublimit Adequacy (0-2)
2. Scope of Coverage (0-3)
3. Exclusions Impact (0-2)
4. Prior Acts/Retroactive Date (0-1.5)
5. Conditions/Requirements (0-1.5)`

// industryCriteria is keyed by the industry labels the intake form offers.
var industryCriteria = map[string]string{
	"MSP/Technology Services": `**MSP/TECHNOLOGY SERVICES - HEIGHTENED ANALYSIS:**
- Technology E&O: CRITICAL - must have robust professional services coverage
- Contingent Business Interruption: HIGH - service delivery dependencies
- Contractual Liability: HIGH - liability transfer in client contracts
- Social Engineering: HIGH - common attack vector
- Waiting Period: should be 8 hours or less for BI claims
- Minimum recommended aggregate: $3-5M for small MSPs, $10M+ for larger`,
	"Healthcare": `**HEALTHCARE - HEIGHTENED ANALYSIS:**
- HIPAA Breach Response: CRITICAL - specific coverage triggers required
- PHI-Specific Coverage: HIGH - protected health information handling
- HHS/OCR Regulatory Defense: CRITICAL - investigation and penalty coverage
- Business Associate Agreement: HIGH - BAA-related liability
- Minimum recommended aggregate: $5-10M`,
	"Financial Services": `**FINANCIAL SERVICES - HEIGHTENED ANALYSIS:**
- SEC/FINRA Regulatory Defense: CRITICAL - regulatory investigations
- Funds Transfer Fraud: CRITICAL - wire fraud coverage and sublimits
- Customer Account Protection: HIGH - unauthorized transaction coverage
- Social Engineering sublimit should be at least $500K
- Minimum recommended aggregate: $5-10M`,
	"Retail/E-commerce": `**RETAIL/E-COMMERCE - HEIGHTENED ANALYSIS:**
- PCI-DSS Fines & Assessments: CRITICAL - adequate sublimits
- Payment Card Fraud: HIGH - card data breach coverage
- Consumer Notification: HIGH - high volume notification costs
- E-commerce Platform: HIGH - online transaction protection
- Minimum recommended aggregate: $3-5M`,
	"Manufacturing": `**MANUFACTURING - HEIGHTENED ANALYSIS:**
- OT/ICS/SCADA Coverage: CRITICAL - operational technology systems
- System Failure: HIGH - non-malicious outage coverage
- Contingent BI: HIGH - supply chain dependencies
- Longer BI waiting periods may be acceptable (24 hours or less)
- Minimum recommended aggregate: $5-10M`,
	"Professional Services": `**PROFESSIONAL SERVICES - HEIGHTENED ANALYSIS:**
- E&O Coverage: CRITICAL - professional liability integration
- Client Data Protection: HIGH - sensitive client information
- Reputational Harm: HIGH - professional reputation impact
- Minimum recommended aggregate: $2-5M`,
	"Education": `**EDUCATION - HEIGHTENED ANALYSIS:**
- FERPA Compliance: CRITICAL - student data protection
- Student Data Protection: HIGH - minors' data handling
- Regulatory Defense: HIGH - federal/state education regulations
- Social Engineering: HIGH - common target sector
- Minimum recommended aggregate: $3-5M`,
	jobs.DefaultIndustry: `**GENERAL ANALYSIS FRAMEWORK:**
- Apply standard scoring methodology across all coverages
- Focus on aggregate limits, deductibles, and key exclusions
- Pay attention to BI waiting periods and coverage triggers
- Review social engineering and ransomware coverage carefully
- Minimum recommended aggregate: $2-3M for SMB, $5M+ for mid-market`,
}

const redFlags = `## RED FLAGS - ALWAYS DOCUMENT IF PRESENT
1. War/Terrorism Exclusions without buyback option
2. Nation-State Attack Exclusions
3. Absolute Unencrypted Data Exclusions
4. Absolute Failure-to-Patch Exclusions
5. Complete Insider Threat Exclusions
6. Ransomware carved out or sublimited below $100K
7. BI Waiting Periods over 24 hours
8. Social Engineering below 20% of aggregate
9. No Prior Acts for Renewals
10. Cyber Terrorism Exclusion
11. Voluntary Shutdown Exclusion
12. Dependent Business Interruption Exclusion`

const recommendationCriteria = `## RECOMMENDATION CRITERIA
- **BIND**: Score 7.0 or higher, no critical red flags, meets industry needs
- **BIND WITH CONDITIONS**: Score 5.5-6.9, minor gaps addressable via endorsement
- **NEGOTIATE**: Score 4.0-5.4, significant gaps requiring carrier negotiation
- **DECLINE**: Score below 4.0 or critical unmitigated red flags`

const outputFormat = `## REQUIRED JSON OUTPUT FORMAT

Return one JSON object with this structure:
{
  "client_company": "CLIENT_NAME",
  "client_industry": "INDUSTRY",
  "analysis_date": "YYYY-MM-DD",
  "policy_type": "new|renewal",
  "program_details": {
    "carrier": "CARRIER_NAME",
    "policy_number": "POL-XXXXX",
    "primary_limits": "$X,XXX,XXX",
    "deductible": 0,
    "total_premium": 0,
    "financial_rating": "A.M. Best Rating",
    "policy_period": "MM/DD/YYYY to MM/DD/YYYY"
  },
  "coverage_analysis": {
    "first_party": [{"coverage_name": "", "maturity_score": 0, "sublimit": "", "scope_description": "", "key_exclusions": [], "notes": "", "page_reference": ""}],
    "third_party": [{"coverage_name": "", "maturity_score": 0, "sublimit": "", "scope_description": "", "key_exclusions": [], "notes": "", "page_reference": ""}]
  },
  "executive_summary": {
    "overview": "2-3 paragraph executive summary",
    "key_metrics": {
      "overall_maturity_score": 0.0,
      "coverage_comprehensiveness": 0,
      "total_coverage_limit": 0,
      "annual_premium": 0,
      "primary_carrier_rating": ""
    },
    "critical_action_items": [],
    "recommendation": "BIND|BIND WITH CONDITIONS|NEGOTIATE|DECLINE",
    "recommendation_rationale": ""
  },
  "policy_summary": {
    "strengths": [],
    "critical_deficiencies": [],
    "moderate_concerns": [],
    "industry_specific_findings": []
  },
  "red_flags": [{"flag": "", "severity": "HIGH|MEDIUM", "impact": "", "recommendation": ""}],
  "recommendations": {
    "immediate_actions": [{"priority": 1, "item": "", "rationale": "", "expected_impact": ""}],
    "renewal_considerations": [],
    "risk_management_suggestions": []
  }
}

IMPORTANT: respond with ONLY the JSON object. No text before or after it.`

// IndustryCriteria returns the heightened-analysis block for industry,
// falling back to the general framework for unknown labels.
func IndustryCriteria(industry string) string {
	if c, ok := industryCriteria[industry]; ok {
		return c
	}
	return industryCriteria[jobs.DefaultIndustry]
}

// GetSystemPrompt builds the analyst instructions for one client profile.
func GetSystemPrompt(industry string, renewal bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert cyber insurance policy analyst for %s. ", Firm)
	b.WriteString("Perform a comprehensive analysis of the policy using the evaluation framework below. ")
	b.WriteString("Score on policy language, not carrier reputation, and give specific recommendations.\n\n")

	for _, section := range []string{coverageCategories, scoringScale, IndustryCriteria(industry), redFlags, recommendationCriteria} {
		b.WriteString(section)
		b.WriteString("\n\n")
	}
	if renewal {
		b.WriteString("Note: This is a RENEWAL policy. Pay extra attention to changes from prior term and ensure no gaps in continuous coverage.\n\n")
	}
	b.WriteString(outputFormat)
	return b.String()
}

// GetUserPrompt wraps the extracted policy text with the client context.
func GetUserPrompt(policyText string, s jobs.Subject) string {
	renewal := "No (New Policy)"
	if s.Renewal {
		renewal = "Yes"
	}
	return fmt.Sprintf(`Please analyze the following cyber insurance policy for %s.

**Client Industry:** %s
**Policy Type:** %s
**Renewal:** %s

---
**POLICY DOCUMENT TEXT:**

%s
---

Provide the complete analysis in the structured format from your instructions:
1. Score each coverage area on the 0-10 scale
2. Flag any red flags or critical deficiencies
3. Apply industry-specific criteria for %s
4. Give a clear binding recommendation with rationale
5. Output valid JSON that can be parsed programmatically`,
		s.Name, s.Industry, s.PolicyType, renewal, policyText, s.Industry)
}
