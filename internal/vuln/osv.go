// Package vuln correlates BOM packages with an OSV-compatible vulnerability
// database through its batch query endpoint.
package vuln

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"depcompliance/internal/aggregate"
	"depcompliance/internal/logging"
	"depcompliance/internal/metrics"
	"depcompliance/internal/model"
)

const (
	DefaultURL       = "https://api.osv.dev/v1/querybatch"
	DefaultChunkSize = 50
	DefaultTimeout   = 10 * time.Second

	// Source tags every finding produced by this client.
	Source = "osv"
)

// Client queries the batch endpoint one chunk at a time.
type Client struct {
	url        string
	chunkSize  int
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	recorder   metrics.Recorder
}

// Option configures a Client.
type Option func(*Client)

func WithURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.url = url
		}
	}
}

func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithTimeout bounds each chunk request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.OrDiscard(l) }
}

func WithRecorder(r metrics.Recorder) Option {
	return func(c *Client) { c.recorder = metrics.OrNop(r) }
}

func New(opts ...Option) *Client {
	c := &Client{
		url:        DefaultURL,
		chunkSize:  DefaultChunkSize,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		logger:     logging.Discard(),
		recorder:   metrics.Nop{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type osvQuery struct {
	Package osvPackage `json:"package"`
	Version string     `json:"version"`
}

type osvPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type osvBatchRequest struct {
	Queries []osvQuery `json:"queries"`
}

type osvBatchResponse struct {
	Results []osvResult `json:"results"`
}

type osvResult struct {
	Vulns []osvVuln `json:"vulns"`
}

type osvVuln struct {
	ID         string   `json:"id"`
	Summary    string   `json:"summary"`
	Aliases    []string `json:"aliases"`
	References []struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"references"`
	DatabaseSpecific struct {
		Severity string `json:"severity"`
	} `json:"database_specific"`
	Severity json.RawMessage `json:"severity"`
}

// Skipped is the report used when correlation is disabled.
func Skipped() model.VulnerabilityReport {
	return model.VulnerabilityReport{
		Status:             model.VulnStatusSkipped,
		SeverityBreakdown:  map[model.Severity]int{},
		Findings:           []model.VulnerabilityFinding{},
		VulnerablePackages: []string{},
		Source:             Source,
	}
}

// Correlate looks up every package with a usable version. Chunks are issued
// sequentially; a chunk that fails for any reason contributes no findings and
// is listed in ChunkFailures while the others are kept.
func (c *Client) Correlate(ctx context.Context, pkgs []model.PackageRecord) model.VulnerabilityReport {
	rep := Skipped()
	rep.Status = model.VulnStatusCompleted

	var targets []target
	for _, p := range pkgs {
		t, ok := targetFor(p)
		if !ok {
			rep.SkippedPackages++
			continue
		}
		targets = append(targets, t)
	}
	rep.ScannedPackages = len(targets)

	var findings []model.VulnerabilityFinding
	chunks := 0
	for start := 0; start < len(targets); start += c.chunkSize {
		end := min(start+c.chunkSize, len(targets))
		chunk := targets[start:end]
		chunks++

		if err := ctx.Err(); err != nil {
			rep.ChunkFailures = append(rep.ChunkFailures, model.ChunkFailure{
				Chunk: chunks - 1, Packages: len(chunk), Reason: err.Error(),
			})
			c.recorder.VulnChunk("skipped")
			continue
		}

		got, err := c.queryChunk(ctx, chunk)
		if err != nil {
			c.logger.Warn("vulnerability chunk failed", "chunk", chunks-1, "packages", len(chunk), "error", err)
			rep.ChunkFailures = append(rep.ChunkFailures, model.ChunkFailure{
				Chunk: chunks - 1, Packages: len(chunk), Reason: err.Error(),
			})
			c.recorder.VulnChunk("failed")
			continue
		}
		c.recorder.VulnChunk("ok")
		findings = append(findings, got...)
	}

	rep.Findings = aggregate.Findings(findings)
	rep.TotalVulnerabilities = len(rep.Findings)
	rep.SeverityBreakdown = aggregate.Breakdown(rep.Findings)
	rep.VulnerablePackages = aggregate.VulnerablePackages(rep.Findings)
	if rep.VulnerablePackages == nil {
		rep.VulnerablePackages = []string{}
	}
	for sev, n := range rep.SeverityBreakdown {
		c.recorder.Findings(string(sev), n)
	}

	switch failed := len(rep.ChunkFailures); {
	case failed == 0:
	case failed == chunks:
		rep.Status = model.VulnStatusFailed
		rep.Error = fmt.Sprintf("all %d vulnerability queries failed: %s", chunks, rep.ChunkFailures[0].Reason)
	default:
		rep.Status = model.VulnStatusPartial
		rep.Error = fmt.Sprintf("%d of %d vulnerability queries failed", failed, chunks)
	}

	c.logger.Info("vulnerability correlation complete",
		"scanned", rep.ScannedPackages, "skipped", rep.SkippedPackages,
		"findings", rep.TotalVulnerabilities, "failedChunks", len(rep.ChunkFailures))
	return rep
}

func (c *Client) queryChunk(ctx context.Context, chunk []target) ([]model.VulnerabilityFinding, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := osvBatchRequest{Queries: make([]osvQuery, len(chunk))}
	for i, t := range chunk {
		req.Queries[i] = osvQuery{
			Package: osvPackage{Name: t.name, Ecosystem: t.ecosystem},
			Version: t.version,
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", model.ErrExternalQuery, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrExternalQuery, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrExternalQuery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %s", model.ErrExternalQuery, resp.Status)
	}

	var batch osvBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", model.ErrExternalQuery, err)
	}
	if len(batch.Results) != len(chunk) {
		return nil, fmt.Errorf("%w: %d results for %d queries", model.ErrExternalQuery, len(batch.Results), len(chunk))
	}

	var out []model.VulnerabilityFinding
	for i, res := range batch.Results {
		t := chunk[i]
		for _, v := range res.Vulns {
			if v.ID == "" {
				continue
			}
			out = append(out, model.VulnerabilityFinding{
				Package:    t.record,
				Version:    t.recordVersion,
				Ecosystem:  t.ecosystem,
				Identifier: v.ID,
				Severity:   severityOf(v),
				Source:     Source,
				Summary:    v.Summary,
				Aliases:    v.Aliases,
				URL:        advisoryURL(v),
			})
		}
	}
	return out, nil
}

// severityOf prefers the database-specific label, then a plain severity
// string, then the first numeric score in the severity list.
func severityOf(v osvVuln) model.Severity {
	if s, err := model.ParseSeverity(v.DatabaseSpecific.Severity); err == nil && s != model.SeverityUnknown {
		return s
	}
	if len(v.Severity) == 0 {
		return model.SeverityUnknown
	}

	var label string
	if err := json.Unmarshal(v.Severity, &label); err == nil {
		if s, err := model.ParseSeverity(label); err == nil {
			return s
		}
		return model.SeverityUnknown
	}

	var scores []struct {
		Type  string `json:"type"`
		Score any    `json:"score"`
	}
	if err := json.Unmarshal(v.Severity, &scores); err != nil {
		return model.SeverityUnknown
	}
	for _, sc := range scores {
		switch val := sc.Score.(type) {
		case float64:
			return model.SeverityFromScore(val)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
				return model.SeverityFromScore(f)
			}
			if s, err := model.ParseSeverity(val); err == nil && s != model.SeverityUnknown {
				return s
			}
		}
	}
	return model.SeverityUnknown
}

func advisoryURL(v osvVuln) string {
	for _, ref := range v.References {
		if ref.Type == "ADVISORY" && ref.URL != "" {
			return ref.URL
		}
	}
	return "https://osv.dev/vulnerability/" + v.ID
}
