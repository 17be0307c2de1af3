package models

import "github.com/username/poolcosts/backend/src/extraction"

// ExtractRequest is the JSON body of POST /extract.
type ExtractRequest struct {
	Text          string `json:"text"`
	Correspondent string `json:"correspondent"`
}

// ExtractResponse carries the engine result together with its decision trace.
type ExtractResponse struct {
	Vendor      *string               `json:"vendor"`
	Amount      *float64              `json:"amount"`
	Currency    string                `json:"currency"`
	Confidence  float64               `json:"confidence"`
	NeedsReview bool                  `json:"needs_review"`
	Debug       extraction.DebugTrace `json:"debug"`
	Candidates  []CandidateOut        `json:"candidates,omitempty"`
}

// CandidateOut is one ranked amount candidate in the extended extract output.
type CandidateOut struct {
	Value           float64  `json:"value"`
	RawText         string   `json:"raw_text"`
	LineIndex       int      `json:"line_index"`
	Line            string   `json:"line"`
	Score           int      `json:"score"`
	IsNegative      bool     `json:"is_negative"`
	CurrencyNearby  bool     `json:"currency_nearby"`
	ClosestKeyword  *string  `json:"closest_keyword"`
	PositiveMatches []string `json:"positive_matches"`
	NegativeMatches []string `json:"negative_matches"`
	NeutralMatches  []string `json:"neutral_matches"`
}

func NewCandidateOut(c extraction.AmountCandidate) CandidateOut {
	out := CandidateOut{
		Value:           c.Amount.InexactFloat64(),
		RawText:         c.RawText,
		LineIndex:       c.LineIndex,
		Line:            c.LineText,
		Score:           c.Score,
		IsNegative:      c.IsNegative,
		CurrencyNearby:  c.HasCurrencyNearby,
		PositiveMatches: mergeKeywords(c.PositiveSameLine, c.PositiveContext),
		NegativeMatches: mergeKeywords(c.NegativeSameLine, c.NegativeContext),
		NeutralMatches:  mergeKeywords(c.NeutralSameLine, c.NeutralContext),
	}
	if c.ClosestPositive != "" {
		k := c.ClosestPositive
		out.ClosestKeyword = &k
	}
	return out
}

// mergeKeywords joins same-line and context matches without duplicates, same-line first.
func mergeKeywords(sameLine, context []string) []string {
	out := make([]string, 0, len(sameLine)+len(context))
	seen := map[string]bool{}
	for _, k := range append(append([]string{}, sameLine...), context...) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func NewExtractResponse(r extraction.Result) ExtractResponse {
	out := ExtractResponse{
		Vendor:      r.Vendor,
		Currency:    r.Currency,
		Confidence:  r.Confidence,
		NeedsReview: r.NeedsReview,
		Debug:       r.Debug,
	}
	if r.Amount.Valid {
		f := r.Amount.Decimal.InexactFloat64()
		out.Amount = &f
	}
	return out
}
