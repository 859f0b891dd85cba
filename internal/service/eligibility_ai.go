package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/pkg/config"
)

const (
	iamGrantType      = "urn:ibm:params:oauth:grant-type:apikey"
	tokenRefreshSlack = 60 * time.Second
)

var (
	defaultAIDocuments       = []string{"Identity Proof", "Income Proof", "Address Proof"}
	defaultAIRecommendations = []string{"Standard documentation required"}
)

// ErrScorerDisabled is returned when the remote scorer has no credentials.
var ErrScorerDisabled = errors.New("remote scorer not configured")

type iamTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type agentMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type agentRequest struct {
	Messages []agentMessage `json:"messages"`
}

type agentResponse struct {
	Choices []struct {
		Message agentMessage `json:"message"`
	} `json:"choices"`
}

// AIScorer asks a hosted language model agent for an eligibility verdict.
type AIScorer struct {
	http          *resty.Client
	apiKey        string
	tokenURL      string
	agentEndpoint string
	logger        *zap.Logger
	now           func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewAIScorer constructs an AIScorer from configuration.
func NewAIScorer(cfg config.ScorerConfig, logger *zap.Logger) *AIScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")

	return &AIScorer{
		http:          client,
		apiKey:        cfg.APIKey,
		tokenURL:      cfg.TokenURL,
		agentEndpoint: cfg.AgentEndpoint,
		logger:        logger,
		now:           time.Now,
	}
}

// Enabled reports whether credentials and endpoint are configured.
func (s *AIScorer) Enabled() bool {
	return s != nil && s.apiKey != "" && s.agentEndpoint != ""
}

// Assess implements the scorer contract. The verdict may be PENDING_REVIEW
// when the agent reply carries no decisive status.
func (s *AIScorer) Assess(ctx context.Context, facts models.ApplicantFacts, loan models.LoanRequest) (models.Assessment, error) {
	if !s.Enabled() {
		return models.Assessment{}, ErrScorerDisabled
	}

	token, err := s.accessToken(ctx)
	if err != nil {
		return models.Assessment{}, err
	}

	var reply agentResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(agentRequest{Messages: []agentMessage{{Role: "user", Content: buildPrompt(facts, loan, s.now())}}}).
		SetResult(&reply).
		Post(s.agentEndpoint)
	if err != nil {
		return models.Assessment{}, fmt.Errorf("call scoring agent: %w", err)
	}
	if resp.IsError() {
		if resp.StatusCode() == http.StatusUnauthorized {
			s.dropToken()
		}
		return models.Assessment{}, fmt.Errorf("scoring agent returned status %d", resp.StatusCode())
	}
	if len(reply.Choices) == 0 {
		return models.Assessment{}, errors.New("scoring agent returned no choices")
	}

	assessment := parseAgentReply(reply.Choices[0].Message.Content)
	s.logger.Debug("agent assessment parsed", zap.String("status", string(assessment.Status)))
	return assessment, nil
}

func (s *AIScorer) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.tokenExpiry) {
		return s.token, nil
	}

	var body iamTokenResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type": iamGrantType,
			"apikey":     s.apiKey,
		}).
		SetResult(&body).
		Post(s.tokenURL)
	if err != nil {
		return "", fmt.Errorf("request iam token: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("iam token endpoint returned status %d", resp.StatusCode())
	}
	if body.AccessToken == "" {
		return "", errors.New("iam token response missing access_token")
	}

	s.token = body.AccessToken
	lifetime := time.Duration(body.ExpiresIn)*time.Second - tokenRefreshSlack
	if lifetime < 0 {
		lifetime = 0
	}
	s.tokenExpiry = s.now().Add(lifetime)
	return s.token, nil
}

func (s *AIScorer) dropToken() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

func buildPrompt(facts models.ApplicantFacts, loan models.LoanRequest, now time.Time) string {
	age := "Unknown"
	if years, ok := ageOn(facts.DateOfBirth, now); ok {
		age = fmt.Sprintf("%d", years)
	}
	emi := "N/A"
	if loan.PreferredEMI.Valid {
		emi = loan.PreferredEMI.Decimal.String()
	}

	var b strings.Builder
	b.WriteString("As a banking loan officer AI, assess the loan eligibility for the following applicant and provide detailed analysis:\n\n")
	b.WriteString("APPLICANT DETAILS:\n")
	fmt.Fprintf(&b, "- Full Name: %s\n", orNA(facts.FullName))
	fmt.Fprintf(&b, "- Age: %s years\n", age)
	fmt.Fprintf(&b, "- Gender: %s\n", orNA(facts.Gender))
	fmt.Fprintf(&b, "- Marital Status: %s\n", orNA(facts.MaritalStatus))
	fmt.Fprintf(&b, "- Nationality: %s\n", orNA(facts.Nationality))
	fmt.Fprintf(&b, "- Employment Type: %s\n", orNA(facts.EmploymentType))
	fmt.Fprintf(&b, "- Employer/Business: %s\n", orNA(facts.EmployerName))
	fmt.Fprintf(&b, "- Annual Income: ₹%s\n", facts.AnnualIncome.String())
	existing := facts.ExistingLoans
	if existing == "" {
		existing = "None"
	}
	fmt.Fprintf(&b, "- Existing Loans/EMIs: %s\n", existing)
	fmt.Fprintf(&b, "- CIBIL Score: %d\n\n", facts.CibilScore)
	b.WriteString("LOAN REQUEST:\n")
	fmt.Fprintf(&b, "- Loan Type: %s\n", orNA(loan.LoanType))
	fmt.Fprintf(&b, "- Loan Amount: ₹%s\n", loan.Amount.String())
	fmt.Fprintf(&b, "- Loan Tenure: %d years\n", loan.TenureYears)
	fmt.Fprintf(&b, "- Purpose: %s\n", orNA(loan.Purpose))
	fmt.Fprintf(&b, "- Preferred EMI: ₹%s\n\n", emi)
	b.WriteString("Please provide:\n")
	b.WriteString("1. ELIGIBILITY STATUS: APPROVED/CONDITIONALLY_APPROVED/REJECTED\n")
	b.WriteString("2. DETAILED REASON: Explain the decision factors\n")
	b.WriteString("3. REQUIRED DOCUMENTS: List specific documents needed if eligible\n")
	b.WriteString("4. RECOMMENDATIONS: Suggest improvements if rejected or conditions if conditional\n\n")
	b.WriteString("Format your response as:\n")
	b.WriteString("ELIGIBILITY: [status]\n")
	b.WriteString("REASON: [detailed explanation]\n")
	b.WriteString("DOCUMENTS: [comma-separated list]\n")
	b.WriteString("RECOMMENDATIONS: [specific advice]\n")
	return b.String()
}

// parseAgentReply reads the four prefixed lines of an agent reply. Unknown
// lines are ignored and missing ones keep their defaults.
func parseAgentReply(text string) models.Assessment {
	assessment := models.Assessment{
		Status:          models.VerdictPendingReview,
		Reason:          "Assessment completed",
		Documents:       append([]string{}, defaultAIDocuments...),
		Recommendations: append([]string{}, defaultAIRecommendations...),
		Source:          models.AssessmentSourceAI,
	}

	for _, raw := range strings.Split(strings.TrimSpace(text), "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "ELIGIBILITY:"):
			status := models.Verdict(strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(line, "ELIGIBILITY:"))))
			if status.Final() {
				assessment.Status = status
			}
		case strings.HasPrefix(line, "REASON:"):
			if reason := strings.TrimSpace(strings.TrimPrefix(line, "REASON:")); reason != "" {
				assessment.Reason = reason
			}
		case strings.HasPrefix(line, "DOCUMENTS:"):
			if docs := splitList(strings.TrimPrefix(line, "DOCUMENTS:"), ","); len(docs) > 0 {
				assessment.Documents = docs
			}
		case strings.HasPrefix(line, "RECOMMENDATIONS:"):
			if recs := splitList(strings.TrimPrefix(line, "RECOMMENDATIONS:"), ";"); len(recs) > 0 {
				assessment.Recommendations = recs
			}
		}
	}
	return assessment
}

func splitList(raw, sep string) []string {
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return "N/A"
	}
	return value
}
