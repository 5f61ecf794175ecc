package intent

import (
	"context"
	"testing"

	"github.com/ahricool/raise/internal/errors"
	"github.com/ahricool/raise/internal/llm"
)

type stubGateway struct {
	name  string
	reply string
	err   error
	calls int
	image []byte
}

func (g *stubGateway) Name() string { return g.name }

func (g *stubGateway) Complete(_ context.Context, system, content string, image []byte) (string, error) {
	g.calls++
	g.image = image
	return g.reply, g.err
}

type stubImages struct {
	data  []byte
	err   error
	calls int
}

func (s *stubImages) DownloadFile(context.Context, string) ([]byte, error) {
	s.calls++
	return s.data, s.err
}

func resolve(t *testing.T, p *Parser, in Input) Intent {
	t.Helper()
	out, err := p.Resolve(context.Background(), in)
	if err != nil {
		t.Fatalf("resolve %+v: %v", in, err)
	}
	return out
}

func TestListCommand(t *testing.T) {
	p := NewParser(nil, nil, nil)
	for _, text := range []string{"/positions", " /POSITION ", "持仓", "查看持仓", "我的持仓", "/positions@RaiseBot"} {
		if got := resolve(t, p, Input{Content: text}); got.Kind != KindList {
			t.Fatalf("%q kind=%s want list", text, got.Kind)
		}
	}
}

func TestDeleteCommand(t *testing.T) {
	p := NewParser(nil, nil, nil)
	got := resolve(t, p, Input{Content: "/position_delete 600519 aapl ?? 12"})
	if got.Kind != KindDelete || got.Strategy != "delete_command" {
		t.Fatalf("got=%+v", got)
	}
	if len(got.DeleteCodes) != 2 || got.DeleteCodes[0] != "600519" || got.DeleteCodes[1] != "AAPL" {
		t.Fatalf("codes=%v", got.DeleteCodes)
	}
	got = resolve(t, p, Input{Content: "/delete_position 000001"})
	if got.Kind != KindDelete || got.DeleteCodes[0] != "000001" {
		t.Fatalf("got=%+v", got)
	}
}

func TestDeleteCommandWithoutCodesFallsThrough(t *testing.T) {
	if _, ok := (DeleteCommand{}).Attempt(context.Background(), Input{Content: "/position_delete ??"}); ok {
		t.Fatalf("delete command matched without codes")
	}
	if _, ok := (DeletePhrase{}).Attempt(context.Background(), Input{Content: "删除"}); ok {
		t.Fatalf("delete phrase matched without codes")
	}
}

func TestDeletePhrase(t *testing.T) {
	p := NewParser(nil, nil, nil)
	got := resolve(t, p, Input{Content: "删除持仓 600519 和 000001"})
	if got.Kind != KindDelete || got.Strategy != "delete_phrase" {
		t.Fatalf("got=%+v", got)
	}
	if len(got.DeleteCodes) != 2 || got.DeleteCodes[1] != "000001" {
		t.Fatalf("codes=%v", got.DeleteCodes)
	}
}

func TestEmptyContent(t *testing.T) {
	gw := &stubGateway{name: "gemini", reply: `{"intent":"upsert"}`}
	p := NewParser([]llm.Gateway{gw}, nil, nil)
	got := resolve(t, p, Input{Content: "   "})
	if got.Kind != KindEmpty {
		t.Fatalf("kind=%s", got.Kind)
	}
	if gw.calls != 0 {
		t.Fatalf("gateway called for empty message")
	}
}

func TestFallbackWithoutGateway(t *testing.T) {
	p := NewParser(nil, nil, nil)
	got := resolve(t, p, Input{Content: "600519 200股 成本价 1820"})
	if got.Kind != KindUpsert || got.Strategy != "fallback" {
		t.Fatalf("got=%+v", got)
	}
	if len(got.Rows) != 1 {
		t.Fatalf("rows=%+v", got.Rows)
	}
	row := got.Rows[0]
	if row.StockCode != "600519" || row.Quantity == nil || row.Quantity.String() != "200" || row.CostPrice == nil || row.CostPrice.String() != "1820" {
		t.Fatalf("row=%+v", row)
	}
}

func TestFallbackCapsCodes(t *testing.T) {
	got, ok := Fallback{}.Attempt(context.Background(), Input{Content: "000001 000002 000003 000004 000005 000006 000007 cost: 9.5"})
	if !ok || len(got.Rows) != 5 {
		t.Fatalf("ok=%v rows=%d", ok, len(got.Rows))
	}
	if got.Rows[0].Quantity != nil || got.Rows[4].CostPrice == nil || got.Rows[4].CostPrice.String() != "9.5" {
		t.Fatalf("row=%+v", got.Rows[4])
	}
}

func TestUnresolvedMessage(t *testing.T) {
	p := NewParser(nil, nil, nil)
	_, err := p.Resolve(context.Background(), Input{Content: "你好 1234"})
	if !errors.Is(err, errors.ErrParseFailure) {
		t.Fatalf("err=%v", err)
	}
}

func TestExtractorUsesFirstNonEmptyReply(t *testing.T) {
	first := &stubGateway{name: "gemini", err: errors.New("quota")}
	second := &stubGateway{name: "openai", reply: "```json\n{\"intent\":\"upsert\",\"positions\":[{\"stock_code\":\"aapl\",\"stock_name\":\"Apple\",\"quantity\":\"10\",\"cost_price\":null,\"note\":\"\"}]}\n```"}
	third := &stubGateway{name: "spare", reply: `{"intent":"delete"}`}
	p := NewParser([]llm.Gateway{first, second, third}, nil, nil)

	got := resolve(t, p, Input{Content: "bought 10 apple"})
	if got.Strategy != "llm" || got.Kind != KindUpsert {
		t.Fatalf("got=%+v", got)
	}
	if third.calls != 0 {
		t.Fatalf("later provider called after a usable reply")
	}
	row := got.Rows[0]
	if row.StockCode != "aapl" || row.StockName != "Apple" || row.Quantity.String() != "10" || row.CostPrice != nil {
		t.Fatalf("row=%+v", row)
	}
}

func TestExtractorRepairsTruncatedJSON(t *testing.T) {
	gw := &stubGateway{name: "gemini", reply: `{"intent":"delete","delete_codes":["600519", "000001"`}
	p := NewParser([]llm.Gateway{gw}, nil, nil)
	got := resolve(t, p, Input{Content: "清掉茅台和平安"})
	if got.Kind != KindDelete || len(got.DeleteCodes) != 2 {
		t.Fatalf("got=%+v", got)
	}
}

func TestTruncatedUpsertWithoutCodeFallsBack(t *testing.T) {
	gw := &stubGateway{name: "gemini", reply: `{"intent":"upsert","positions":[{"stock_code":"600`}
	p := NewParser([]llm.Gateway{gw}, nil, nil)
	got := resolve(t, p, Input{Content: "600519 200股 成本价 1820"})
	if got.Strategy != "fallback" || got.Kind != KindUpsert || len(got.Rows) != 1 {
		t.Fatalf("got=%+v", got)
	}
	if got.Rows[0].StockCode != "600519" || got.Rows[0].Quantity == nil || got.Rows[0].Quantity.IntPart() != 200 {
		t.Fatalf("row=%+v", got.Rows[0])
	}
}

func TestMalformedReplyFallsBack(t *testing.T) {
	for _, reply := range []string{"", "   ", "sorry, I cannot help", "[1,2]", "null"} {
		gw := &stubGateway{name: "gemini", reply: reply}
		p := NewParser([]llm.Gateway{gw}, nil, nil)
		got := resolve(t, p, Input{Content: "600519 200股 成本价 1820"})
		if got.Strategy != "fallback" || len(got.Rows) != 1 {
			t.Fatalf("reply %q: got=%+v", reply, got)
		}
	}
}

func TestExtractorFetchesImageLazily(t *testing.T) {
	images := &stubImages{data: []byte{0xff, 0xd8, 0xff}}
	gw := &stubGateway{name: "gemini", reply: `{"intent":"upsert","positions":[]}`}

	p := NewParser([]llm.Gateway{gw}, images, nil)
	resolve(t, p, Input{Content: "持仓"})
	if images.calls != 0 {
		t.Fatalf("image fetched for list command")
	}

	got := resolve(t, p, Input{ImageFileID: "file-1"})
	if images.calls != 1 || len(gw.image) != 3 {
		t.Fatalf("calls=%d image=%v", images.calls, gw.image)
	}
	if got.Kind != KindUpsert || len(got.Rows) != 0 {
		t.Fatalf("got=%+v", got)
	}
}

func TestImageDownloadFailureStillAsksModel(t *testing.T) {
	images := &stubImages{err: errors.New("timeout")}
	gw := &stubGateway{name: "gemini", reply: `{"intent":"upsert","positions":[{"stock_code":"600519"}]}`}
	p := NewParser([]llm.Gateway{gw}, images, nil)
	got := resolve(t, p, Input{Content: "看图", ImageFileID: "file-1"})
	if gw.calls != 1 || gw.image != nil || len(got.Rows) != 1 {
		t.Fatalf("calls=%d got=%+v", gw.calls, got)
	}
}

func TestCleanReply(t *testing.T) {
	cases := map[string]string{
		"```json\n{}\n```": "{}",
		"```JSON{}```":     "{}",
		"```\n{}":          "{}",
		" {} ":             "{}",
	}
	for in, want := range cases {
		if got := cleanReply(in); got != want {
			t.Fatalf("cleanReply(%q)=%q want %q", in, got, want)
		}
	}
}
