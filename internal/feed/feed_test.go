package feed

import "testing"

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"BTC/USD", "BTCUSDT"},
		{"btc/usd", "BTCUSDT"},
		{" eth/usd ", "ETHUSDT"},
		{"SOL/EUR", "SOLUSDT"},
		{"BTCUSDT", "BTCUSDT"},
		{"ethusdt", "ETHUSDT"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeSymbol(tt.raw); got != tt.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
