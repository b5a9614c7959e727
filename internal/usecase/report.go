package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/ports"
)

// ResultAnalyzer scores the stored corpus against one client's interests.
type ResultAnalyzer interface {
	Analyze(ctx context.Context, profile domain.ClientProfile, policy domain.ReportPolicy, now time.Time) (domain.AnalysisResult, error)
}

// ReportComposer turns an analysis result into a report plus its rendered
// artifacts.
type ReportComposer interface {
	Compose(ctx context.Context, profile domain.ClientProfile, policy domain.ReportPolicy, result domain.AnalysisResult, now time.Time) (domain.Report, []domain.Artifact, error)
}

// ReportsDeps wires the report generation collaborators.
type ReportsDeps struct {
	Profiles []domain.ClientProfile
	Analyzer ResultAnalyzer
	Composer ReportComposer
	Sink     ports.ArtifactSink
	Logger   *slog.Logger
}

// Reports generates client reports on demand.
type Reports struct {
	profiles map[string]domain.ClientProfile
	analyzer ResultAnalyzer
	composer ReportComposer
	sink     ports.ArtifactSink
	logger   *slog.Logger
	now      func() time.Time
}

// NewReports constructs the report entry point.
func NewReports(deps ReportsDeps) *Reports {
	profiles := make(map[string]domain.ClientProfile, len(deps.Profiles))
	for _, p := range deps.Profiles {
		profiles[p.ID] = p
	}
	return &Reports{
		profiles: profiles,
		analyzer: deps.Analyzer,
		composer: deps.Composer,
		sink:     deps.Sink,
		logger:   deps.Logger.With("component", "reports"),
		now:      time.Now,
	}
}

// Generate runs the full analyze-compose-store chain for one client and
// cadence. It returns the report, possibly marked Partial when an upstream
// degradation occurred, or an error; it never quietly produces nothing.
func (r *Reports) Generate(ctx context.Context, clientID string, cadence domain.Cadence) (domain.Report, error) {
	profile, ok := r.profiles[clientID]
	if !ok {
		return domain.Report{}, fmt.Errorf("generate report for %q: %w", clientID, domain.ErrClientNotFound)
	}
	policy, ok := profile.PolicyFor(cadence)
	if !ok {
		return domain.Report{}, fmt.Errorf("client %q has no %s report configured", clientID, cadence)
	}

	now := r.now().UTC()

	result, err := r.analyzer.Analyze(ctx, profile, policy, now)
	if err != nil {
		return domain.Report{}, fmt.Errorf("analyze corpus for %q: %w", clientID, err)
	}

	rep, artifacts, err := r.composer.Compose(ctx, profile, policy, result, now)
	if err != nil {
		return domain.Report{}, fmt.Errorf("compose %s report for %q: %w", cadence, clientID, err)
	}

	for _, artifact := range artifacts {
		path, err := r.sink.Store(ctx, artifact)
		if err != nil {
			return domain.Report{}, fmt.Errorf("store %s artifact for %q: %w", artifact.Format, clientID, err)
		}
		r.logger.Info("report artifact written",
			"client", clientID, "cadence", cadence, "format", artifact.Format, "path", path)
	}

	if rep.Partial {
		r.logger.Warn("report generated partially",
			"client", clientID, "cadence", cadence, "reason", rep.PartialReason)
	} else {
		r.logger.Info("report generated",
			"client", clientID, "cadence", cadence, "articles", len(rep.Articles))
	}
	return rep, nil
}
