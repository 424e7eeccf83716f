package ocr

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/careerup/generic"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

func fastRetry(attempts int) RetryOptions {
	return RetryOptions{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

// replyWith answers every request with a Messages API body whose text block is text.
func replyWith(t *testing.T, text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := json.Marshal(map[string]any{
			"id":          "msg_1",
			"stop_reason": "end_turn",
			"content":     []map[string]string{{"type": "text", "text": text}},
		})
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

func TestExtract_WageLedger(t *testing.T) {
	// GIVEN: A model that answers with a fenced JSON ledger
	var got messagesRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		replyWith(t, "```json\n"+`{"worker_name": "山田 太郎", "months": [
			{"year_month": "2025-01", "base_salary": 200000, "fixed_allowances": 10000, "overtime_pay": 15000, "work_days": 18, "scheduled_work_days": 20},
			{"year_month": "2025-02", "base_salary": 200000}
		]}`+"\n```")(w, r)
	}))
	defer srv.Close()

	client, err := NewAnthropicClient("test-key", WithBaseURL(srv.URL), WithRetry(fastRetry(1)))
	require.NoError(t, err)

	// WHEN: Extracting a wage ledger image
	ext, err := client.Extract(context.Background(), Document{Type: DocWageLedger, MediaType: "image/png", Data: pngBytes})

	// THEN: The request carries the image and the reply decodes into a WageLedger
	require.NoError(t, err)
	assert.Equal(t, "test-key", headers.Get("x-api-key"))
	assert.Equal(t, anthropicVersion, headers.Get("anthropic-version"))
	require.Len(t, got.Messages, 1)
	require.Len(t, got.Messages[0].Content, 2)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pngBytes), got.Messages[0].Content[0].Source.Data)
	assert.Equal(t, prompts[DocWageLedger], got.Messages[0].Content[1].Text)

	ledger, ok := ext.(*WageLedger)
	require.True(t, ok)
	assert.Equal(t, DocWageLedger, ledger.DocumentType())
	require.Len(t, ledger.Months, 2)
	assert.Nil(t, ledger.Months[1].WorkDays)

	records := ledger.SalaryRecords()
	require.Len(t, records, 2)
	assert.True(t, records[0].BaseSalary.Equal(generic.NewYen(200000)))
	assert.True(t, records[0].OvertimePay.Equal(generic.NewYen(15000)))
	assert.Equal(t, 18, records[0].WorkDays)
	assert.True(t, records[1].FixedAllowances.IsZero())
	assert.Equal(t, 0, records[1].ScheduledWorkDays)
}

func TestExtract_RetriesServerErrors(t *testing.T) {
	// GIVEN: A model that fails twice with 529 then succeeds
	var calls atomic.Int32
	ok := replyWith(t, `{"worker_name": "佐藤", "start_date": "2025-04-01", "base_salary": 230000}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, `{"type":"error","error":{"type":"overloaded_error"}}`, 529)
			return
		}
		ok(w, r)
	}))
	defer srv.Close()

	client, err := NewAnthropicClient("k", WithBaseURL(srv.URL), WithRetry(fastRetry(3)))
	require.NoError(t, err)

	// WHEN: Extracting a contract
	ext, err := client.Extract(context.Background(), Document{Type: DocEmploymentContract, MediaType: "image/jpeg", Data: pngBytes})

	// THEN: The third attempt wins
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	contract := ext.(*EmploymentContract)
	assert.Equal(t, "佐藤", contract.WorkerName)
	require.NotNil(t, contract.BaseSalary)
	assert.Equal(t, int64(230000), *contract.BaseSalary)
}

func TestExtract_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, _ := NewAnthropicClient("k", WithBaseURL(srv.URL), WithRetry(fastRetry(2)))
	_, err := client.Extract(context.Background(), Document{Type: DocWageLedger, MediaType: "image/png", Data: pngBytes})

	assert.ErrorIs(t, err, generic.ErrUpstream)
	assert.Equal(t, int32(2), calls.Load())
}

func TestExtract_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, _ := NewAnthropicClient("k", WithBaseURL(srv.URL), WithRetry(fastRetry(5)))
	_, err := client.Extract(context.Background(), Document{Type: DocWageLedger, MediaType: "image/png", Data: pngBytes})

	assert.ErrorIs(t, err, generic.ErrUpstream)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExtract_RejectsInvalidReply(t *testing.T) {
	// GIVEN: A model that reads a negative salary and an impossible month
	srv := httptest.NewServer(replyWith(t, `{"months": [{"year_month": "2025-13", "base_salary": -5}]}`))
	defer srv.Close()
	client, _ := NewAnthropicClient("k", WithBaseURL(srv.URL), WithRetry(fastRetry(1)))

	// WHEN: Extracting
	_, err := client.Extract(context.Background(), Document{Type: DocWageLedger, MediaType: "image/png", Data: pngBytes})

	// THEN: The boundary validation reports both problems
	var ve *generic.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Problems, 2)
}

func TestExtract_NonJSONReply(t *testing.T) {
	srv := httptest.NewServer(replyWith(t, "申し訳ありませんが読み取れませんでした。"))
	defer srv.Close()
	client, _ := NewAnthropicClient("k", WithBaseURL(srv.URL), WithRetry(fastRetry(1)))

	_, err := client.Extract(context.Background(), Document{Type: DocAttendanceRecord, MediaType: "image/png", Data: pngBytes})
	assert.ErrorIs(t, err, generic.ErrUpstream)
}

func TestExtract_ValidatesDocumentBeforeCalling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) }))
	defer srv.Close()
	client, _ := NewAnthropicClient("k", WithBaseURL(srv.URL))

	_, err := client.Extract(context.Background(), Document{Type: "payslip", MediaType: "application/zip"})

	var ve *generic.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Problems, 3)
	assert.Zero(t, calls.Load())
}

func TestNewAnthropicClient_RequiresKey(t *testing.T) {
	_, err := NewAnthropicClient("")
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestAttendanceRecord_Validate(t *testing.T) {
	work, scheduled := 22, 20
	r := &AttendanceRecord{Months: []AttendanceMonth{{YearMonth: "2025-03", WorkDays: &work, ScheduledWorkDays: &scheduled}}}

	err := r.Validate()
	var ve *generic.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Problems[0], "exceeds")

	assert.Error(t, (&AttendanceRecord{}).Validate())
}

func TestEmploymentContract_Validate(t *testing.T) {
	c := &EmploymentContract{StartDate: "2025-04-01", EndDate: "2025-03-31"}
	assert.Error(t, c.Validate())

	c.EndDate = ""
	assert.NoError(t, c.Validate())
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```\n", `{"a":1}`},
		{"  ```json{\"a\":1}```", `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripCodeFence(tt.in), tt.in)
	}
}

func TestParseDocumentType(t *testing.T) {
	dt, err := ParseDocumentType("wage_ledger")
	require.NoError(t, err)
	assert.Equal(t, "賃金台帳", dt.Label())

	_, err = ParseDocumentType("receipt")
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}
