package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ahricool/raise/internal/errors"
)

type Client struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("analysis API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		host:       strings.TrimRight(host, "/"),
		httpClient: httpClient,
	}
}

var _ Analyzer = (*Client)(nil)

type analyzeRequest struct {
	StockCode  string `json:"stock_code"`
	ReportType string `json:"report_type"`
	AsyncMode  bool   `json:"async_mode"`
}

type reportMeta struct {
	StockCode string   `json:"stock_code"`
	StockName string   `json:"stock_name"`
	ChangePct *float64 `json:"change_pct"`
}

type reportSummary struct {
	AnalysisSummary string   `json:"analysis_summary"`
	OperationAdvice string   `json:"operation_advice"`
	SentimentScore  *float64 `json:"sentiment_score"`
}

type report struct {
	Meta    reportMeta    `json:"meta"`
	Summary reportSummary `json:"summary"`
}

type analyzeResponse struct {
	report
	Report *report `json:"report"`
}

func (c *Client) Analyze(ctx context.Context, code, reportType string) (*Result, error) {
	if code == "" {
		return nil, errors.Wrap(errors.ErrInvalidCode, "stock code is required")
	}
	if reportType == "" {
		reportType = "simple"
	}
	payload, err := json.Marshal(analyzeRequest{StockCode: code, ReportType: reportType})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/v1/analysis/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "analysis request failed"), errors.ErrTransientDelivery)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return parseReport(code, body)
}

func parseReport(code string, body []byte) (*Result, error) {
	var raw analyzeResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, "decode analysis report")
	}
	rep := raw.report
	if raw.Report != nil {
		rep = *raw.Report
	}
	out := &Result{
		Code:            code,
		Name:            rep.Meta.StockName,
		OperationAdvice: rep.Summary.OperationAdvice,
		Conclusion:      rep.Summary.AnalysisSummary,
		ChangePct:       rep.Meta.ChangePct,
	}
	if rep.Meta.StockCode != "" {
		out.Code = rep.Meta.StockCode
	}
	if rep.Summary.SentimentScore != nil {
		out.SentimentScore = int(*rep.Summary.SentimentScore + 0.5)
	}
	return out, nil
}
