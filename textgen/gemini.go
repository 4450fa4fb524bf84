package textgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/lumo/taxdesk/ledger"
)

// DefaultModel is the Gemini model used for all generation calls.
const DefaultModel = "gemini-2.0-flash"

const systemPreamble = "You are a tax/accounting assistant for Korean small businesses.\n" +
	"Principles:\n" +
	"1. Only use information from the provided context.\n" +
	"2. When unsure, answer \"needs accountant review\".\n" +
	"3. Never guess numbers.\n" +
	"4. Output STRICT JSON only (no comments, no trailing text).\n" +
	"Do NOT wrap the response in code fences.\n"

// Gemini is the live backend. Every method falls back to the template
// backend on failure; callers never see an error.
type Gemini struct {
	client   *genai.Client
	model    string
	fallback *Template
	log      zerolog.Logger
}

// NewGemini builds the live backend. Returns an error only when the
// client itself cannot be constructed; runtime failures degrade per call.
func NewGemini(ctx context.Context, apiKey string, log zerolog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Gemini{
		client:   client,
		model:    DefaultModel,
		fallback: NewTemplate(),
		log:      log,
	}, nil
}

// GenerateQuestions asks the model for 3-5 multiple-choice questions.
func (g *Gemini) GenerateQuestions(ctx context.Context, tx ledger.Transaction, past []ledger.Transaction) QuestionSet {
	var sb strings.Builder
	sb.WriteString(systemPreamble)
	sb.WriteString("\nAnalyze the transaction and generate questions collecting the context an accountant will need.\n\n")
	writeTransaction(&sb, tx)

	if len(past) > 0 {
		sb.WriteString("\nPast similar transactions:\n")
		for i, p := range past {
			if i == 3 {
				break
			}
			fmt.Fprintf(&sb, "- %s: %s %s\n", p.Date.Format("2006-01-02"), p.Counterparty, ledger.FormatWon(p.Amount))
		}
	}

	sb.WriteString("\nGenerate 3-5 multiple-choice questions (2-4 options each), always including one about supporting documents.\n")
	sb.WriteString("Respond with this JSON shape:\n")
	sb.WriteString(`{"questions":[{"id":"Q1","text":"...","options":["..."],"type":"single_choice"}],"confidence":0.9,"category_suggestion":"..."}`)

	raw, err := g.generate(ctx, sb.String())
	if err != nil {
		g.log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("question generation degraded, using templates")
		return g.fallback.GenerateQuestions(ctx, tx, past)
	}

	var parsed QuestionSet
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		g.log.Warn().Err(err).Msg("unparsable model output, using templates")
		return g.fallback.GenerateQuestions(ctx, tx, past)
	}

	// Drop questions missing required fields rather than rejecting the
	// whole set.
	valid := parsed.Questions[:0]
	for _, q := range parsed.Questions {
		if q.ID != "" && q.Text != "" && len(q.Options) > 0 {
			if q.Type == "" {
				q.Type = "single_choice"
			}
			valid = append(valid, q)
		}
	}
	parsed.Questions = valid
	if len(parsed.Questions) == 0 {
		return g.fallback.GenerateQuestions(ctx, tx, past)
	}

	if parsed.Confidence == 0 {
		parsed.Confidence = 0.8
	}
	parsed.Source = "ai"
	return parsed
}

// Summarize asks the model for a short accountant-facing digest.
func (g *Gemini) Summarize(ctx context.Context, tx ledger.Transaction, answers []Answer) Summary {
	var sb strings.Builder
	sb.WriteString(systemPreamble)
	sb.WriteString("\nWrite a 2-3 sentence summary of this transaction for an accountant, with account classification and tax handling notes.\n\n")
	writeTransaction(&sb, tx)

	answersJSON, _ := json.Marshal(answers)
	sb.WriteString("\nUser answers:\n")
	sb.Write(answersJSON)

	sb.WriteString("\n\nRespond with this JSON shape:\n")
	sb.WriteString(`{"summary":"...","account_classification":"...","tax_notes":"..."}`)

	raw, err := g.generate(ctx, sb.String())
	if err != nil {
		g.log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("summary generation degraded, using templates")
		return g.fallback.Summarize(ctx, tx, answers)
	}

	var parsed Summary
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || parsed.Summary == "" {
		return g.fallback.Summarize(ctx, tx, answers)
	}
	return parsed
}

// DescribeRelationship asks the model to explain how grouped
// transactions relate, in plain prose.
func (g *Gemini) DescribeRelationship(ctx context.Context, txs []ledger.Transaction) string {
	if len(txs) < 2 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Explain in 2-3 sentences how the following transactions relate, with enough business context for an accountant. Respond with plain text, no JSON.\n\n")
	for _, tx := range txs {
		fmt.Fprintf(&sb, "- %s: %s %s\n", tx.Date.Format("2006-01-02"), tx.Counterparty, ledger.FormatWon(tx.Amount))
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(sb.String()), nil)
	if err != nil {
		g.log.Warn().Err(err).Msg("relationship description degraded, using templates")
		return g.fallback.DescribeRelationship(ctx, txs)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return g.fallback.DescribeRelationship(ctx, txs)
	}
	return text
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ledger.ErrServiceDegraded, err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty model response", ledger.ErrServiceDegraded)
	}
	return cleanModelJSON(text), nil
}

func writeTransaction(sb *strings.Builder, tx ledger.Transaction) {
	fmt.Fprintf(sb, "Transaction:\n- date: %s\n- time: %s\n- amount: %s\n- direction: %s\n- counterparty: %s\n- bank memo: %s\n- bank: %s\n",
		tx.Date.Format("2006-01-02"), tx.Time, ledger.FormatWon(tx.Amount), tx.Direction, tx.Counterparty, tx.BankMemo, tx.BankName)
}

// cleanModelJSON strips markdown fences the model sometimes adds despite
// instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
