package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"ledger-recon/internal/chart"
	"ledger-recon/internal/domain"
	"ledger-recon/pkg/logger"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

// Generator is the part of the genai client the classifier uses.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig selects the backend. Project and Location switch to Vertex AI.
type GeminiConfig struct {
	APIKey   string
	Project  string
	Location string
	Model    string
}

// GeminiClassifier asks a Gemini model for a mapping.
type GeminiClassifier struct {
	gen   Generator
	model string
}

// NewGeminiClassifier creates a genai client for the configured backend.
func NewGeminiClassifier(ctx context.Context, cfg GeminiConfig) (*GeminiClassifier, error) {
	cc := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	}
	if cfg.Project != "" {
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	} else {
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.APIKey
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewGeminiClassifierWithGenerator(client.Models, cfg.Model), nil
}

func NewGeminiClassifierWithGenerator(gen Generator, model string) *GeminiClassifier {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiClassifier{gen: gen, model: model}
}

const systemPrompt = "You classify business bank transactions into a double-entry chart of accounts.\n" +
	"Pick the single account the transaction should be booked against; the bank side is handled for you.\n" +
	"Only use account codes from the chart provided. If none fits, leave account_code empty and propose new_account.\n\n" +
	"Return ONLY valid raw JSON with this shape:\n" +
	"{\"account_code\": string, \"confidence\": integer 0-100, \"explanation\": string, " +
	"\"new_account\": null | {\"code\": string, \"name\": string, \"type\": \"asset\"|\"liability\"|\"equity\"|\"income\"|\"expense\", \"parent_code\": string}}\n" +
	"Do NOT wrap the response in code fences."

type modelAnswer struct {
	AccountCode string `json:"account_code"`
	Confidence  int    `json:"confidence"`
	Explanation string `json:"explanation"`
	NewAccount  *struct {
		Code       string `json:"code"`
		Name       string `json:"name"`
		Type       string `json:"type"`
		ParentCode string `json:"parent_code"`
	} `json:"new_account"`
}

// Classify sends the transaction, the chart and any prior turns of the
// session, then records the exchange in the session.
func (g *GeminiClassifier) Classify(ctx context.Context, req Request) (*Suggestion, error) {
	sess := req.Session
	if sess == nil {
		sess = NewSession(req.TenantID, req.Transaction.ID)
	}
	if sess.TenantID != req.TenantID || sess.TransactionID != req.Transaction.ID {
		return nil, domain.NewValidationError("escalation session belongs to another transaction")
	}

	prompt := buildPrompt(req)
	if len(sess.Turns()) > 0 && req.Feedback != "" {
		prompt = "Reviewer feedback on your previous answer: " + req.Feedback
	}

	var contents []*genai.Content
	for _, t := range sess.Turns() {
		contents = append(contents, genai.NewContentFromText(t.Text, genai.Role(t.Role)))
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		ResponseMIMEType:  "application/json",
	}

	resp, err := g.gen.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	var answer modelAnswer
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &answer); err != nil {
		return nil, fmt.Errorf("unmarshal model answer: %w", err)
	}

	sess.Append(string(genai.RoleUser), prompt)
	sess.Append(string(genai.RoleModel), raw)

	return toSuggestion(req, answer), nil
}

func toSuggestion(req Request, answer modelAnswer) *Suggestion {
	s := &Suggestion{
		Confidence:  min(max(answer.Confidence, 0), 100),
		Explanation: answer.Explanation,
	}
	if answer.NewAccount != nil && answer.NewAccount.Code != "" {
		s.NewAccount = &domain.NewAccountSpec{
			Code:       answer.NewAccount.Code,
			Name:       answer.NewAccount.Name,
			Type:       domain.AccountType(strings.ToLower(answer.NewAccount.Type)),
			ParentCode: answer.NewAccount.ParentCode,
		}
	}

	code := strings.TrimSpace(answer.AccountCode)
	if code == "" {
		return s
	}
	var account *domain.Account
	for i := range req.Accounts {
		if req.Accounts[i].Code == code && req.Accounts[i].IsActive {
			account = &req.Accounts[i]
			break
		}
	}
	if account == nil {
		logger.GetLogger().WithFields(map[string]interface{}{
			"transaction_id": req.Transaction.ID,
			"account_code":   code,
		}).Warn("Model suggested an account outside the chart")
		s.Explanation = strings.TrimSpace(s.Explanation + fmt.Sprintf(" (suggested account %s is not in the chart)", code))
		return s
	}
	if req.BankAccount == nil {
		s.Explanation = strings.TrimSpace(s.Explanation + " (no bank account to balance against)")
		return s
	}

	m := &domain.TransactionMapping{
		Transaction: req.Transaction,
		Confidence:  s.Confidence,
		Source:      domain.SourceAISuggested,
		Reasoning:   []string{answer.Explanation},
	}
	if req.Transaction.IsMoneyOut() {
		m.DebitAccount, m.CreditAccount = account.Ref(), req.BankAccount.Ref()
	} else {
		m.DebitAccount, m.CreditAccount = req.BankAccount.Ref(), account.Ref()
	}
	s.Mapping = m
	return s
}

func buildPrompt(req Request) string {
	var b strings.Builder
	tx := req.Transaction

	direction := "money in"
	if tx.IsMoneyOut() {
		direction = "money out"
	}
	fmt.Fprintf(&b, "Transaction:\n- date: %s\n- description: %s\n- amount: %s (%s)\n",
		tx.Date.Format("2006-01-02"), tx.Description, tx.Amount().StringFixed(2), direction)
	if tx.Category != "" {
		fmt.Fprintf(&b, "- bank category: %s\n", tx.Category)
	}
	if tx.Reference != "" {
		fmt.Fprintf(&b, "- reference: %s\n", tx.Reference)
	}
	if req.Entity != nil {
		fmt.Fprintf(&b, "Likely counterparty: %s (%s, confidence %.0f)\n",
			req.Entity.Entity.Name, req.Entity.Entity.Kind, req.Entity.Confidence)
	}
	if len(req.Reasoning) > 0 {
		fmt.Fprintf(&b, "Automatic matching notes: %s\n", strings.Join(req.Reasoning, "; "))
	}

	b.WriteString("\nChart of accounts:\n")
	chart.New(req.Accounts).Walk(func(a domain.Account, depth int) {
		if !a.IsActive {
			return
		}
		fmt.Fprintf(&b, "%s%s %s (%s)\n", strings.Repeat("  ", depth), a.Code, a.Name, a.Type)
	})
	return b.String()
}

// cleanModelJSON strips Markdown fences and any text around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
