package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ahricool/raise/internal/llm"
	"github.com/ahricool/raise/internal/stockcode"
)

const ExtractionPrompt = `You are a parser for stock positions. Read user content and return strict JSON only. ` +
	`JSON schema: {"intent":"upsert|delete|unknown",` +
	`"positions":[{"stock_code":"","stock_name":"","quantity":0,"cost_price":0,"note":""}],` +
	`"delete_codes":[""],"summary":""}. ` +
	`If data is missing, keep null/empty instead of guessing.`

var (
	leadingFence  = regexp.MustCompile("(?i)^```(?:json)?")
	trailingFence = regexp.MustCompile("```$")
)

// Extractor asks the model gateways, in order, to turn the message into JSON.
// The first non-empty reply is decoded; provider failures only move on to the
// next provider.
type Extractor struct {
	Gateways []llm.Gateway
	Images   ImageFetcher
	Logger   *zap.Logger
}

func (e *Extractor) Name() string { return "llm" }

func (e *Extractor) Attempt(ctx context.Context, in Input) (Intent, bool) {
	if len(e.Gateways) == 0 || (in.Content == "" && in.ImageFileID == "") {
		return Intent{}, false
	}
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	image := e.fetchImage(ctx, in.ImageFileID, logger)
	var reply string
	for _, gw := range e.Gateways {
		text, err := gw.Complete(ctx, ExtractionPrompt, in.Content, image)
		if err != nil {
			logger.Warn("llm parse failed", zap.String("provider", gw.Name()), zap.Error(err))
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			reply = text
			break
		}
	}
	if reply == "" {
		return Intent{}, false
	}

	payload, ok := decodePayload(reply)
	if !ok {
		logger.Info("llm reply is not a JSON object", zap.Int("length", len(reply)))
		return Intent{}, false
	}
	got, ok := payload.intent()
	if !ok {
		logger.Info("llm reply has no usable stock code", zap.Int("rows", len(payload.Positions)))
	}
	return got, ok
}

func (e *Extractor) fetchImage(ctx context.Context, fileID string, logger *zap.Logger) []byte {
	if fileID == "" || e.Images == nil {
		return nil
	}
	data, err := e.Images.DownloadFile(ctx, fileID)
	if err != nil {
		logger.Warn("download photo failed", zap.String("file_id", fileID), zap.Error(err))
		return nil
	}
	return data
}

type payload struct {
	Intent      flexString   `json:"intent"`
	Positions   []payloadRow `json:"positions"`
	DeleteCodes []flexString `json:"delete_codes"`
	Summary     flexString   `json:"summary"`
}

type payloadRow struct {
	StockCode flexString  `json:"stock_code"`
	StockName flexString  `json:"stock_name"`
	Quantity  flexDecimal `json:"quantity"`
	CostPrice flexDecimal `json:"cost_price"`
	Note      flexString  `json:"note"`
}

// cleanReply strips a surrounding markdown code fence.
func cleanReply(text string) string {
	body := strings.TrimSpace(text)
	body = strings.TrimSpace(leadingFence.ReplaceAllString(body, ""))
	body = strings.TrimSpace(trailingFence.ReplaceAllString(body, ""))
	return body
}

func decodePayload(text string) (*payload, bool) {
	body := cleanReply(text)
	if body == "" {
		return nil, false
	}
	if p, ok := unmarshalObject(body); ok {
		return p, true
	}
	repaired, err := jsonrepair.JSONRepair(body)
	if err != nil {
		return nil, false
	}
	return unmarshalObject(repaired)
}

func unmarshalObject(body string) (*payload, bool) {
	if !strings.HasPrefix(strings.TrimSpace(body), "{") {
		return nil, false
	}
	var p payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, false
	}
	return &p, true
}

// intent maps the model's reply; anything but an explicit delete is an upsert.
// Rows without a single valid code (as left by a repaired, truncated reply)
// are reported as unmatched.
func (p *payload) intent() (Intent, bool) {
	if strings.EqualFold(strings.TrimSpace(string(p.Intent)), string(KindDelete)) {
		codes := make([]string, 0, len(p.DeleteCodes))
		for _, c := range p.DeleteCodes {
			codes = append(codes, string(c))
		}
		return Intent{Kind: KindDelete, DeleteCodes: stockcode.NormalizeAll(codes), Summary: string(p.Summary)}, true
	}
	rows := make([]Row, 0, len(p.Positions))
	usable := false
	for _, r := range p.Positions {
		if stockcode.Normalize(string(r.StockCode)) != "" {
			usable = true
		}
		rows = append(rows, Row{
			StockCode: strings.TrimSpace(string(r.StockCode)),
			StockName: strings.TrimSpace(string(r.StockName)),
			Quantity:  r.Quantity.d,
			CostPrice: r.CostPrice.d,
			Note:      strings.TrimSpace(string(r.Note)),
		})
	}
	if len(rows) > 0 && !usable {
		return Intent{}, false
	}
	return Intent{Kind: KindUpsert, Rows: rows, Summary: string(p.Summary)}, true
}

// flexString accepts a JSON string, number or null.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err == nil {
		*s = flexString(num.String())
		return nil
	}
	*s = ""
	return nil
}

// flexDecimal accepts a number, a numeric string or null. Anything that does
// not parse becomes nil.
type flexDecimal struct {
	d *decimal.Decimal
}

func (f *flexDecimal) UnmarshalJSON(b []byte) error {
	f.d = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	raw := string(b)
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		raw = strings.ReplaceAll(strings.TrimSpace(str), ",", "")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	f.d = &d
	return nil
}
