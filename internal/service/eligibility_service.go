package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/loan-portal-api/internal/models"
)

// Scorer produces an eligibility assessment.
type Scorer interface {
	Assess(ctx context.Context, facts models.ApplicantFacts, loan models.LoanRequest) (models.Assessment, error)
}

// EligibilityService runs the remote scorer under a deadline and falls back to
// the rule scorer on any failure or indeterminate verdict.
type EligibilityService struct {
	primary  Scorer
	fallback Scorer
	timeout  time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewEligibilityService constructs the service. primary may be nil.
func NewEligibilityService(primary, fallback Scorer, timeout time.Duration, metrics *MetricsService, logger *zap.Logger) *EligibilityService {
	if fallback == nil {
		fallback = NewRuleScorer()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{primary: primary, fallback: fallback, timeout: timeout, metrics: metrics, logger: logger}
}

// Assess always returns one of the three decisive verdicts with the baseline documents included.
func (s *EligibilityService) Assess(ctx context.Context, facts models.ApplicantFacts, loan models.LoanRequest) models.Assessment {
	if assessment, ok := s.tryPrimary(ctx, facts, loan); ok {
		return s.finish(assessment)
	}

	assessment, err := s.fallback.Assess(ctx, facts, loan)
	if err != nil {
		s.logger.Error("rule scorer failed", zap.Error(err))
		assessment = models.Assessment{
			Status:          models.VerdictConditional,
			Reason:          "Manual review required due to assessment error",
			Recommendations: []string{"Please contact bank for manual assessment"},
			Source:          models.AssessmentSourceRules,
		}
	}
	return s.finish(assessment)
}

func (s *EligibilityService) tryPrimary(ctx context.Context, facts models.ApplicantFacts, loan models.LoanRequest) (models.Assessment, bool) {
	if s.primary == nil {
		return models.Assessment{}, false
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	assessment, err := s.primary.Assess(callCtx, facts, loan)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveScorerCall(false, elapsed)
		s.logger.Warn("remote scorer failed, using rules", zap.Error(err), zap.Duration("elapsed", elapsed))
		return models.Assessment{}, false
	}
	s.metrics.ObserveScorerCall(true, elapsed)

	if !assessment.Status.Final() {
		s.logger.Warn("remote scorer verdict indeterminate, using rules", zap.String("status", string(assessment.Status)))
		return models.Assessment{}, false
	}
	return assessment, true
}

func (s *EligibilityService) finish(assessment models.Assessment) models.Assessment {
	assessment.Documents = withBaseline(assessment.Documents)
	if len(assessment.Recommendations) == 0 {
		assessment.Recommendations = recommendationsFor(assessment.Status)
	}
	s.metrics.RecordAssessment(string(assessment.Source), string(assessment.Status))
	return assessment
}

func withBaseline(docs []string) []string {
	out := make([]string, 0, len(models.BaselineDocuments)+len(docs))
	seen := make(map[string]struct{}, cap(out))
	for _, doc := range append(append([]string{}, models.BaselineDocuments...), docs...) {
		if _, ok := seen[doc]; ok {
			continue
		}
		seen[doc] = struct{}{}
		out = append(out, doc)
	}
	return out
}
