package stockcode

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"600519", "600519"},
		{" 00700 ", "00700"},
		{"aapl", "AAPL"},
		{"brk.a", "BRK.A"},
		{"1234", ""},
		{"1234567", ""},
		{"TOOLONGX", ""},
		{"60O519", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got := Normalize(tt.in)
		if got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if again := Normalize(got); again != got {
			t.Fatalf("Normalize not idempotent for %q: %q then %q", tt.in, got, again)
		}
	}
}

func TestExtract(t *testing.T) {
	got := Extract("删除持仓 600519 和 aapl, 还有 000001", 0)
	want := []string{"600519", "AAPL", "000001"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract=%v want %v", got, want)
	}
	if got := Extract("600519 200股 成本价 1820", 0); !reflect.DeepEqual(got, []string{"600519"}) {
		t.Fatalf("Extract=%v want [600519]", got)
	}
	if got := Extract("a b c d e f g", 5); len(got) != 5 {
		t.Fatalf("limit not applied: %v", got)
	}
}

func TestNormalizeAll(t *testing.T) {
	got := NormalizeAll([]string{"600519", "", "600519 ", "x1", "tsla"})
	want := []string{"600519", "TSLA"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeAll=%v want %v", got, want)
	}
}
