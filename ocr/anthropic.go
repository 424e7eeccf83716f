package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/warp/careerup/generic"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-sonnet-4-20250514"
	anthropicVersion = "2023-06-01"
)

// AnthropicClient implements Client with the Anthropic Messages API.
type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	retry      RetryOptions
	logger     *slog.Logger
}

var _ Client = (*AnthropicClient)(nil)

type Option func(*AnthropicClient)

func WithBaseURL(u string) Option {
	return func(c *AnthropicClient) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithModel(model string) Option {
	return func(c *AnthropicClient) { c.model = model }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *AnthropicClient) { c.httpClient = hc }
}

// WithTimeout bounds each attempt, not the whole retry loop.
func WithTimeout(d time.Duration) Option {
	return func(c *AnthropicClient) { c.httpClient.Timeout = d }
}

func WithRetry(opts RetryOptions) Option {
	return func(c *AnthropicClient) { c.retry = opts }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *AnthropicClient) { c.logger = l }
}

// NewAnthropicClient returns a client for apiKey.
func NewAnthropicClient(apiKey string, opts ...Option) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: anthropic API key is required", generic.ErrInvalidInput)
	}
	c := &AnthropicClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		maxTokens:  2048,
		retry:      DefaultRetryOptions(),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Extract sends doc to the model and decodes the reply into the
// extraction type for doc.Type.
func (c *AnthropicClient) Extract(ctx context.Context, doc Document) (Extraction, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(c.buildRequest(doc))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var text string
	err = withRetry(ctx, c.logger, c.retry, func() error {
		var callErr error
		text, callErr = c.call(ctx, body)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	ext, err := newExtraction(doc.Type)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), ext); err != nil {
		return nil, fmt.Errorf("%w: model reply is not valid JSON: %v", generic.ErrUpstream, err)
	}
	if err := ext.Validate(); err != nil {
		return nil, err
	}
	c.logger.Debug("document extracted", "document_type", doc.Type)
	return ext, nil
}

// call performs one HTTP round trip and returns the reply text. Transport
// errors, 429 and 5xx are retryable; other statuses are permanent.
func (c *AnthropicClient) call(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", permanent(ctx.Err())
		}
		return "", fmt.Errorf("%w: %v", generic.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", generic.ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		upstream := fmt.Errorf("%w: status %d: %s", generic.ErrUpstream, resp.StatusCode, truncate(string(raw), 300))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", upstream
		}
		return "", permanent(upstream)
	}

	var reply messagesResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", permanent(fmt.Errorf("%w: parse response: %v", generic.ErrUpstream, err))
	}
	for _, block := range reply.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", permanent(fmt.Errorf("%w: no text in response", generic.ErrUpstream))
}

func (c *AnthropicClient) buildRequest(doc Document) messagesRequest {
	return messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    systemPrompt,
		Messages: []message{{
			Role: "user",
			Content: []contentBlock{
				{
					Type: "image",
					Source: &imageSource{
						Type:      "base64",
						MediaType: doc.MediaType,
						Data:      base64.StdEncoding.EncodeToString(doc.Data),
					},
				},
				{Type: "text", Text: prompts[doc.Type]},
			},
		}},
	}
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	ID         string `json:"id"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// =============================================================================
// PROMPTS
// =============================================================================

const systemPrompt = "あなたは日本の労務書類を読み取るアシスタントです。" +
	"指定されたJSON形式のみで回答し、読み取れない項目は省略してください。" +
	"金額は円単位の整数、日付はYYYY-MM-DD、年月はYYYY-MMで出力してください。"

var prompts = map[DocumentType]string{
	DocEmploymentContract: `この雇用契約書から次の項目を読み取ってください。
{"worker_name": "氏名", "employer_name": "事業主名", "employment_type": "雇用形態",
 "start_date": "契約開始日", "end_date": "契約終了日", "base_salary": 基本給,
 "fixed_allowances": 毎月固定の手当合計, "weekly_hours": 週所定労働時間}`,
	DocWageLedger: `この賃金台帳から月ごとの行を読み取ってください。
{"worker_name": "氏名", "months": [{"year_month": "YYYY-MM", "base_salary": 基本給,
 "fixed_allowances": 固定手当合計, "overtime_pay": 残業代, "commuting_allowance": 通勤手当,
 "work_days": 出勤日数, "scheduled_work_days": 所定労働日数}]}`,
	DocAttendanceRecord: `この出勤簿から月ごとの集計を読み取ってください。
{"worker_name": "氏名", "months": [{"year_month": "YYYY-MM", "work_days": 出勤日数,
 "scheduled_work_days": 所定労働日数, "absence_days": 欠勤日数, "paid_leave_days": 有給休暇日数}]}`,
}

// stripCodeFence removes a surrounding markdown code block, if any.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
