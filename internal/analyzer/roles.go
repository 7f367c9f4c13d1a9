package analyzer

import (
	"fmt"
	"strings"

	"github.com/hyperjump/taxlens/internal/models"
)

// Analyst roles select the system instruction.
const (
	RoleEfficiency  = "efficiency"
	RoleReliability = "reliability"
	RoleGeneral     = "general"
)

const efficiencyPrompt = `You are analyzing nonprofit tax records with a focus on program efficiency. For each analysis:
1. Calculate and compare program efficiency ratios:
   - Program spending ratio (program expenses / total expenses)
   - Administrative expense ratio
   - Fundraising efficiency
2. Compare against peer organizations when relevant
3. Provide specific data-backed insights
4. Suggest potential areas for improvement
5. Keep responses concise and focused on key metrics`

const reliabilityPrompt = `You are analyzing nonprofit tax records with a focus on revenue reliability. For each analysis:
1. Assess consistency and trends in revenue streams (e.g., government grants, fundraising, memberships).
2. Identify dependencies on single revenue sources and potential risks.
3. Compare against peer organizations when relevant.
4. Provide data-backed insights and highlight opportunities to diversify revenue.
5. Keep responses concise and focused on reliability and sustainability metrics.`

const generalPrompt = "You are a tax analysis assistant specializing in nonprofit tax records (Form 990). " +
	"Provide clear, accurate analysis based on the provided data. " +
	"When answering questions, reference specific numbers and fields from the data. " +
	"If certain information is not available in the provided data, clearly state that. " +
	"Provide your response in clear, natural language without any special formatting or markers."

const forecastInstruction = "Where queries involve predicting or forecasting a value, do not simply return the value " +
	"of an attribute named 'forecast' or 'predict'. Instead, use the present trend in the dataset to generate " +
	"a data-driven estimate."

// ValidRole reports whether role names a known analyst role.
func ValidRole(role string) bool {
	switch strings.ToLower(role) {
	case RoleEfficiency, RoleReliability, RoleGeneral:
		return true
	}
	return false
}

// SystemPrompt returns the instruction for role. Predictive questions get the forecasting rule appended.
func SystemPrompt(role string, class models.QueryClass) string {
	var base string
	switch strings.ToLower(role) {
	case RoleReliability:
		base = reliabilityPrompt
	case RoleGeneral:
		base = generalPrompt
	default:
		base = efficiencyPrompt
	}
	if class != models.QueryClassPredictive {
		return base
	}
	if strings.ToLower(role) == RoleGeneral {
		return base + " " + forecastInstruction
	}
	return fmt.Sprintf("%s\n%d. %s", base, 6, forecastInstruction)
}
