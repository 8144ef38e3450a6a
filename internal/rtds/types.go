package rtds

import "github.com/shopspring/decimal"

// subscribeRequest is sent once after each successful dial.
type subscribeRequest struct {
	Action        string         `json:"action"`
	Subscriptions []subscription `json:"subscriptions"`
}

type subscription struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
}

// pingMessage is the application-level keepalive the stream expects.
type pingMessage struct {
	Type string `json:"type"`
}

// envelope frames every inbound message. Only type "update" carries a price.
type envelope struct {
	Type    string       `json:"type"`
	Topic   string       `json:"topic"`
	Payload pricePayload `json:"payload"`
}

// pricePayload carries one price update.
type pricePayload struct {
	Symbol    string          `json:"symbol"`    // upstream form, e.g. "BTC/USD"
	Value     decimal.Decimal `json:"value"`     // quote price
	Timestamp int64           `json:"timestamp"` // milliseconds
}
