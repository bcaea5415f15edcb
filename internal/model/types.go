package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Chain     string    `json:"chain,omitempty"`
	Account   string    `json:"account,omitempty"`
}

// EngineStatus is the stable status surface the engine exposes outward.
type EngineStatus struct {
	Lifecycle       string `json:"lifecycle"`
	FeeQuote        string `json:"fee_quote,omitempty"`
	FeeQuoteDecimal string `json:"fee_quote_decimal,omitempty"`
	Disabled        bool   `json:"disabled"`
	DisabledReason  string `json:"disabled_reason,omitempty"`
	Informational   bool   `json:"informational,omitempty"`
	SuggestedAmount string `json:"suggested_amount,omitempty"`
}

// FeeBreakdown lists the per-call estimates behind an aggregate quote.
type FeeBreakdown struct {
	Method string `json:"method"`
	FeeRaw string `json:"fee_raw"`
}

type Quote struct {
	Action       string         `json:"action"`
	Calls        []FeeBreakdown `json:"calls"`
	AggregateRaw string         `json:"aggregate_raw,omitempty"`
	Aggregate    string         `json:"aggregate,omitempty"`
	Status       EngineStatus   `json:"status"`
}

type Outcome struct {
	Action        string `json:"action"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	BlockHeight   uint64 `json:"block_height,omitempty"`
	TxHash        string `json:"tx_hash"`
	RealizedFee   string `json:"realized_fee"`
	Timestamp     string `json:"timestamp"`
}

type HistoryItem struct {
	Action       string `json:"action"`
	Amount       string `json:"amount,omitempty"`
	Counterpart  string `json:"counterpart,omitempty"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	BlockHeight  uint64 `json:"block_height,omitempty"`
	TxHash       string `json:"tx_hash"`
	RealizedFee  string `json:"realized_fee"`
	RecordedAtTS string `json:"recorded_at"`
}
