package textgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumo/taxdesk/ledger"
)

// Template is the deterministic rule-based backend. It is both the
// development mode and the fallback path for the live backend, so its
// output must be stable for identical input.
type Template struct{}

// NewTemplate builds the deterministic backend.
func NewTemplate() *Template {
	return &Template{}
}

var expenseQuestions = []Question{
	{ID: "Q1", Text: "What was the main purpose of this expense?",
		Options: []string{"Business operations", "Development/research", "Marketing", "Payroll", "Other"},
		Type:    "single_choice"},
	{ID: "Q2", Text: "Is this a recurring expense?",
		Options: []string{"Yes, monthly", "Yes, weekly", "No, one-off", "Irregular"},
		Type:    "single_choice"},
	{ID: "Q3", Text: "Is this related to any other transaction?",
		Options: []string{"Independent", "Related (enter which)", "Not sure"},
		Type:    "single_choice"},
	{ID: "Q4", Text: "Did you receive an invoice or receipt?",
		Options: []string{"Yes, received", "No", "Will request"},
		Type:    "single_choice"},
	{ID: "Q5", Text: "Upload supporting documents?",
		Options: []string{"Upload file", "Later", "No documents"},
		Type:    "file_upload"},
}

var incomeQuestions = []Question{
	{ID: "Q1", Text: "What is the source of this deposit?",
		Options: []string{"Revenue (service/product)", "Investment", "Loan", "Refund", "Other"},
		Type:    "single_choice"},
	{ID: "Q2", Text: "Does this require a tax invoice?",
		Options: []string{"Already issued", "Will issue", "Not required", "Needs checking"},
		Type:    "single_choice"},
}

// categoryQuestions adds one targeted question when the counterparty
// matches a known keyword.
var categoryQuestions = map[string][]Question{
	"AWS": {{ID: "Q_AWS", Text: "What is the AWS spend mainly for?",
		Options: []string{"Development servers", "Production servers", "Data storage", "AI/ML services"},
		Type:    "single_choice"}},
	"급여": {{ID: "Q_SALARY", Text: "Who is this payroll for?",
		Options: []string{"Full-time", "Contract", "Freelancer", "Part-time"},
		Type:    "single_choice"}},
	"마케팅": {{ID: "Q_MARKETING", Text: "What kind of marketing?",
		Options: []string{"Online ads", "Offline ads", "Events/promotions", "Content production"},
		Type:    "single_choice"}},
}

// categoryKeywords maps suggested categories to matching substrings of
// the counterparty or memo.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"Development - Cloud", []string{"aws", "azure", "gcp", "네이버클라우드", "cloud", "server"}},
	{"Payroll", []string{"급여", "월급", "salary", "payroll"}},
	{"Marketing", []string{"광고", "마케팅", "marketing", "ads"}},
	{"Rent", []string{"월세", "임대", "사무실", "rent", "office"}},
	{"Telecom", []string{"통신", "인터넷", "kt", "skt", "internet"}},
	{"Supplies", []string{"사무용품", "소모품", "문구", "supplies"}},
	{"Meals", []string{"식대", "점심", "저녁", "식사", "lunch", "meal"}},
}

// GenerateQuestions assembles deterministic questions by direction and
// counterparty keywords. When past activity shows a clear pattern, the
// recurrence question says so.
func (t *Template) GenerateQuestions(_ context.Context, tx ledger.Transaction, past []ledger.Transaction) QuestionSet {
	var questions []Question
	if tx.Direction == ledger.Income {
		questions = append(questions, incomeQuestions...)
	} else {
		questions = append(questions, expenseQuestions...)
	}

	upper := strings.ToUpper(tx.Counterparty)
	for keyword, extra := range categoryQuestions {
		if strings.Contains(upper, strings.ToUpper(keyword)) {
			questions = append(questions, extra...)
			break
		}
	}

	if len(past) > 2 {
		for i := range questions {
			if questions[i].ID == "Q2" {
				questions[i].Options = append([]string{}, questions[i].Options...)
				questions[i].Options[0] = fmt.Sprintf("Yes, monthly (%d earlier occurrences)", len(past))
			}
		}
	}

	if len(questions) > 7 {
		questions = questions[:7]
	}

	return QuestionSet{
		Questions:          questions,
		Confidence:         0.7,
		CategorySuggestion: SuggestCategory(tx),
		Source:             "template",
	}
}

// Summarize builds a two-clause digest from the transaction and the
// purpose/recurrence answers.
func (t *Template) Summarize(_ context.Context, tx ledger.Transaction, answers []Answer) Summary {
	counterparty := tx.Counterparty
	if counterparty == "" {
		counterparty = "unknown counterparty"
	}

	var purpose, recurring string
	for _, a := range answers {
		switch a.QuestionID {
		case "Q1":
			purpose = a.Answer
		case "Q2":
			recurring = a.Answer
		}
	}

	summary := fmt.Sprintf("%s %s", counterparty, ledger.FormatWon(tx.Amount))
	if tx.BankMemo != "" {
		summary += ", " + tx.BankMemo
	}
	if purpose != "" {
		summary += ". Purpose: " + purpose
	}
	if strings.Contains(recurring, "monthly") || strings.Contains(recurring, "weekly") {
		summary += " (recurring)"
	}

	taxNotes := ""
	if purpose == "" {
		taxNotes = "accountant review recommended"
	}

	return Summary{
		Summary:               summary,
		AccountClassification: SuggestCategory(tx),
		TaxNotes:              taxNotes,
	}
}

// DescribeRelationship emits the fixed fallback sentence for a group.
func (t *Template) DescribeRelationship(_ context.Context, txs []ledger.Transaction) string {
	if len(txs) < 2 {
		return ""
	}
	var total int64
	for _, tx := range txs {
		total += tx.Amount
	}
	return fmt.Sprintf("%d related transactions, total %s", len(txs), ledger.FormatWon(total))
}

// SuggestCategory picks a category by keyword over counterparty and memo.
func SuggestCategory(tx ledger.Transaction) string {
	combined := strings.ToLower(tx.Counterparty + " " + tx.BankMemo)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(combined, kw) {
				return entry.category
			}
		}
	}
	return "General expenses"
}
