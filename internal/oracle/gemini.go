package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"fjacquet/mail-ledger/internal/dateutils"
	"fjacquet/mail-ledger/internal/logging"
	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/pipeerror"

	"github.com/google/generative-ai-go/genai"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
)

const promptTemplate = `Analyze this email for financial transactions.

Email From: %s
Subject: %s
Content: %s

Extract and return ONLY valid JSON (no markdown, no explanation):
{
  "isRelevant": true_or_false,
  "transactions": [
    {
      "merchant": "merchant name or null",
      "amount": numeric_amount_only,
      "currency": "USD/EUR/INR/CHF/GBP",
      "date": "YYYY-MM-DD",
      "kind": "purchase/income/subscription/bill/investment/travel/unknown"
    }
  ]
}

RULES:
- An email may describe several transactions (e.g. a statement); return one object per transaction.
- Use null for any field you cannot determine. Never invent values.
- Set isRelevant to false and transactions to [] when the email describes no financial transaction.`

// amount sanity bounds; oracle values outside this range are dropped.
var (
	minAmount = decimal.New(1, -2)    // 0.01
	maxAmount = decimal.New(1000000, 0)
)

type wireTransaction struct {
	Merchant *string     `json:"merchant"`
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
	Date     string      `json:"date"`
	Kind     string      `json:"kind"`
}

type wireResponse struct {
	IsRelevant   bool              `json:"isRelevant"`
	Transactions []wireTransaction `json:"transactions"`
}

// GeminiOracle implements Oracle on the Gemini API.
type GeminiOracle struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger logging.Logger
}

// NewGemini creates a Gemini-backed oracle.
func NewGemini(ctx context.Context, apiKey, modelName string, logger logging.Logger) (*GeminiOracle, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiOracle{
		client: client,
		model:  client.GenerativeModel(modelName),
		logger: logger,
	}, nil
}

// Close releases the underlying client.
func (g *GeminiOracle) Close() error {
	return g.client.Close()
}

// Extract sends the email text to Gemini and validates the response.
func (g *GeminiOracle) Extract(ctx context.Context, email models.NormalizedEmail) ([]models.FieldSet, error) {
	prompt := fmt.Sprintf(promptTemplate, email.Sender, email.Subject, email.PlainText)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, &pipeerror.OracleUnavailableError{EmailID: email.ID, Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &pipeerror.OracleUnavailableError{
			EmailID: email.ID,
			Err:     fmt.Errorf("empty response from Gemini API"),
		}
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	fields, err := parseResponse(responseText)
	if err != nil {
		return nil, &pipeerror.OracleUnavailableError{EmailID: email.ID, Err: err}
	}

	g.logger.Debug("oracle extraction",
		logging.Field{Key: logging.FieldEmailID, Value: email.ID},
		logging.Field{Key: logging.FieldCount, Value: len(fields)})
	return fields, nil
}

// parseResponse decodes and validates an oracle reply. Invalid fields
// are dropped; a transaction left without any valid field is skipped.
func parseResponse(text string) ([]models.FieldSet, error) {
	cleaned := stripMarkdownFences(text)

	var wire wireResponse
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, fmt.Errorf("unparseable oracle response: %w", err)
	}

	if !wire.IsRelevant {
		return nil, nil
	}

	var fields []models.FieldSet
	for _, tx := range wire.Transactions {
		fs := validateTransaction(tx)
		if fs.Merchant == nil && fs.Amount == nil {
			continue
		}
		fields = append(fields, fs)
	}
	return fields, nil
}

func validateTransaction(tx wireTransaction) models.FieldSet {
	fs := models.FieldSet{Kind: models.KindUnknown}

	if tx.Merchant != nil {
		if m := strings.TrimSpace(*tx.Merchant); m != "" && !strings.EqualFold(m, "null") {
			fs.Merchant = &m
		}
	}

	if tx.Amount != "" {
		if amount, err := decimal.NewFromString(tx.Amount.String()); err == nil {
			if amount.GreaterThanOrEqual(minAmount) && amount.LessThanOrEqual(maxAmount) {
				currency := strings.ToUpper(strings.TrimSpace(tx.Currency))
				if len(currency) == 3 {
					money := models.NewMoney(amount, currency)
					fs.Amount = &money
				}
			}
		}
	}

	if tx.Date != "" {
		if date, err := dateutils.Parse(tx.Date); err == nil {
			fs.Date = &date
		}
	}

	switch kind := models.Kind(strings.ToLower(tx.Kind)); kind {
	case models.KindPurchase, models.KindIncome, models.KindSubscription,
		models.KindBill, models.KindInvestment, models.KindTravel:
		fs.Kind = kind
	}

	return fs
}

// stripMarkdownFences removes the ```json fences the model sometimes
// wraps around its reply despite instructions.
func stripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
