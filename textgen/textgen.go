/*
Package textgen provides the text-generation capability: smart questions
for the enrichment flow, accountant-facing summaries, and natural-language
relationship descriptions for grouped transactions.

PURPOSE:
  The core depends only on the Generator interface. Two implementations
  exist, chosen once at construction:
    Gemini:   live model calls (google.golang.org/genai)
    Template: deterministic rule-based fallback

  The contract is degrade-don't-raise: none of the Generator methods
  return an error. The live backend falls back to the template backend
  internally on any failure (unreachable service, malformed model
  output), so callers always receive usable content.

SEE ALSO:
  - template.go: Deterministic backend (also the fallback)
  - gemini.go: Live backend
*/
package textgen

import (
	"context"

	"github.com/lumo/taxdesk/ledger"
)

// Question is one enrichment question presented to the user.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Type    string   `json:"type"` // single_choice | file_upload
}

// QuestionSet is the output of question generation.
type QuestionSet struct {
	Questions          []Question `json:"questions"`
	Confidence         float64    `json:"confidence"`
	CategorySuggestion string     `json:"category_suggestion"`
	Source             string     `json:"source"` // "ai" | "template"
}

// Answer pairs a question with the user's response.
type Answer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// Summary is the accountant-facing digest of an enriched transaction.
type Summary struct {
	Summary               string `json:"summary"`
	AccountClassification string `json:"account_classification"`
	TaxNotes              string `json:"tax_notes"`
}

// Generator produces enrichment text. Implementations never return
// errors; degraded service substitutes deterministic output.
type Generator interface {
	// GenerateQuestions builds 3-7 questions for a transaction, informed
	// by past same-counterparty activity.
	GenerateQuestions(ctx context.Context, tx ledger.Transaction, past []ledger.Transaction) QuestionSet

	// Summarize digests a transaction plus the user's answers.
	Summarize(ctx context.Context, tx ledger.Transaction, answers []Answer) Summary

	// DescribeRelationship explains how a group of transactions relate.
	// Returns "" for fewer than two transactions.
	DescribeRelationship(ctx context.Context, txs []ledger.Transaction) string
}
