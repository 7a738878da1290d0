// Package pipeline orchestrates the policy processing stages from PDF to
// rendered report.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/policyscan/policyscan/internal/agent"
	"github.com/policyscan/policyscan/internal/policy"
	"github.com/policyscan/policyscan/internal/store"
	"github.com/policyscan/policyscan/internal/tools"
	"github.com/policyscan/policyscan/internal/workers"
)

// Options configures a pipeline run.
type Options struct {
	// PolicyName names the policy in the report. Defaults to the PDF
	// file name without extension.
	PolicyName string
	// Workers bounds the goroutine pool for the per-rule stages.
	// Values below 1 mean sequential.
	Workers int
}

// Pipeline wires the five workers together and optionally runs generated
// queries against a claims database.
//
// Stages:
//  1. Parser: extract page text from the PDF via OCR
//  2. Analyzer: identify and classify billing rules
//  3. QueryGen: generate SQL with self-correction
//  4. Scorer: confidence scoring backed by web search
//  5. Claims execution (optional)
//  6. Reporter: HTML report
type Pipeline struct {
	parser   *workers.Parser
	analyzer *workers.Analyzer
	querygen *workers.QueryGen
	scorer   *workers.Scorer
	reporter *workers.Reporter
	claims   *store.ClaimsDB
	logger   *slog.Logger
}

// New assembles a pipeline. claims may be nil; generated queries are then
// left unexecuted.
func New(loop *agent.Loop, pdfTool *tools.PDFTool, ocrTool *tools.OCRTool, search *tools.WebSearchTool, reportTool *tools.ReportTool, maxRetries int, claims *store.ClaimsDB) *Pipeline {
	return &Pipeline{
		parser:   workers.NewParser(loop, pdfTool, ocrTool),
		analyzer: workers.NewAnalyzer(loop),
		querygen: workers.NewQueryGen(loop, maxRetries),
		scorer:   workers.NewScorer(loop, search),
		reporter: workers.NewReporter(loop, reportTool),
		claims:   claims,
		logger:   slog.Default(),
	}
}

// Run executes the full pipeline on a PDF and writes an HTML report to
// outputPath.
func (p *Pipeline) Run(ctx context.Context, pdfPath, outputPath string, opts Options) (*policy.Report, error) {
	start := time.Now()

	policyName := opts.PolicyName
	if policyName == "" {
		base := filepath.Base(pdfPath)
		policyName = strings.TrimSuffix(base, filepath.Ext(base))
	}

	p.logger.Info("starting pipeline", "pdf", pdfPath, "policy", policyName)

	p.logger.Info("stage 1: parsing pdf")
	doc, err := p.parser.Parse(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("parse stage: %w", err)
	}
	p.logger.Info("parsed document", "pages", doc.PageCount)

	p.logger.Info("stage 2: analyzing document")
	rules, err := p.analyzer.Analyze(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("analyze stage: %w", err)
	}
	p.logger.Info("extracted rules", "count", len(rules))

	p.logger.Info("stage 3: generating queries")
	queryRules := p.GenerateOnly(ctx, rules, opts.Workers)

	p.logger.Info("stage 4: scoring rules")
	scoredRules := p.ScoreOnly(ctx, queryRules, opts.Workers)

	if p.claims != nil {
		p.logger.Info("stage 5: executing queries")
		scoredRules = p.ExecuteQueries(scoredRules)
	}

	p.logger.Info("final stage: generating report")
	report, err := p.reporter.GenerateReport(ctx, policyName, doc.Path, scoredRules, outputPath, doc.PageCount, time.Since(start))
	if err != nil {
		return report, fmt.Errorf("report stage: %w", err)
	}

	p.logger.Info("pipeline complete", "duration", time.Since(start).Round(100*time.Millisecond), "report", outputPath)
	return report, nil
}

// ParseOnly runs just the parsing stage.
func (p *Pipeline) ParseOnly(ctx context.Context, pdfPath string) (*policy.ParsedDocument, error) {
	return p.parser.Parse(ctx, pdfPath)
}

// AnalyzeOnly runs just the analysis stage.
func (p *Pipeline) AnalyzeOnly(ctx context.Context, doc *policy.ParsedDocument) ([]policy.ExtractedRule, error) {
	return p.analyzer.Analyze(ctx, doc)
}

// GenerateOnly runs query generation for each rule. Results keep the
// input order regardless of worker count.
func (p *Pipeline) GenerateOnly(ctx context.Context, rules []policy.ExtractedRule, workerCount int) []policy.QueryRule {
	out := make([]policy.QueryRule, len(rules))
	forEach(len(rules), workerCount, func(i int) {
		out[i] = p.querygen.Generate(ctx, rules[i])
	})
	return out
}

// ScoreOnly runs scoring for each query rule, keeping input order.
func (p *Pipeline) ScoreOnly(ctx context.Context, queryRules []policy.QueryRule, workerCount int) []policy.ScoredRule {
	out := make([]policy.ScoredRule, len(queryRules))
	forEach(len(queryRules), workerCount, func(i int) {
		out[i] = p.scorer.Score(ctx, queryRules[i])
	})
	return out
}

// ExecuteQueries runs each rule's SQL against the claims database and
// attaches the results. Per-rule failures are recorded on the rule and
// never abort the batch. Execution is serial on the shared handle.
func (p *Pipeline) ExecuteQueries(rules []policy.ScoredRule) []policy.ScoredRule {
	if p.claims == nil {
		return rules
	}
	for i := range rules {
		sql := rules[i].Rule.SQL
		if strings.TrimSpace(sql) == "" {
			rules[i].QueryResult = policy.QueryResult{Error: "no query text"}
			continue
		}
		result := p.claims.Execute(sql)
		if result.Error != "" {
			p.logger.Warn("query execution failed", "rule", rules[i].Rule.Rule.ID, "error", result.Error)
		} else {
			p.logger.Debug("query executed", "rule", rules[i].Rule.Rule.ID, "violations", result.ViolationCount)
		}
		rules[i].QueryResult = result
	}
	return rules
}

// forEach runs fn for each index, fanning out over at most workerCount
// goroutines. Each index writes only its own slot.
func forEach(n, workerCount int, fn func(i int)) {
	if workerCount <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	sem := make(chan struct{}, workerCount)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
}
