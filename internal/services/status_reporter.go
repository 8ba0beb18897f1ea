package services

import (
	"context"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"sort"
)

type pipelineSummarizer interface {
	Summary(ctx context.Context) (PipelineSummary, error)
}

type candidateWalker interface {
	ForEach(ctx context.Context, pageSize int, fn func(models.Candidate) error) error
}

// Report is a point-in-time overview of the candidate base.
type Report struct {
	CandidatesBySource map[string]int
	Pipeline           PipelineSummary
}

// StatusReporter periodically logs candidate and pipeline status totals.
type StatusReporter struct {
	pipeline   pipelineSummarizer
	candidates candidateWalker
	pageSize   int
	cron       *cron.Cron
}

func NewStatusReporter(pipeline pipelineSummarizer, candidates candidateWalker, pageSize int) *StatusReporter {
	return &StatusReporter{
		pipeline:   pipeline,
		candidates: candidates,
		pageSize:   pageSize,
		cron:       cron.New(),
	}
}

func (r *StatusReporter) Start(schedule string) error {
	if _, err := r.cron.AddFunc(schedule, r.logReport); err != nil {
		return err
	}
	r.cron.Start()
	log.Info("status reporter started")
	return nil
}

func (r *StatusReporter) Stop() {
	r.cron.Stop()
}

func (r *StatusReporter) Build(ctx context.Context) (Report, error) {
	bySource := map[string]int{}
	err := r.candidates.ForEach(ctx, r.pageSize, func(candidate models.Candidate) error {
		bySource[candidate.Source]++
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	summary, err := r.pipeline.Summary(ctx)
	if err != nil {
		return Report{}, err
	}

	return Report{CandidatesBySource: bySource, Pipeline: summary}, nil
}

func (r *StatusReporter) logReport() {
	report, err := r.Build(context.Background())
	if err != nil {
		log.Errorf("Failed to build status report: %v", err)
		return
	}

	log.Infof("candidates by source: %v", report.CandidatesBySource)

	statuses := lo.Keys(report.Pipeline.Counts)
	sort.Strings(statuses)
	for _, status := range statuses {
		log.Infof("status %q: %d entries, %.1f days on average",
			status, report.Pipeline.Counts[status], report.Pipeline.AverageAgeDays[status])
	}
}
