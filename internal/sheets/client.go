package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/observability/metrics"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

const defaultTimeout = 20 * time.Second

var tracer = otel.Tracer("clinicdesk.internal.sheets")

// Config configures the remote store client.
type Config struct {
	Endpoint   string
	Timeout    time.Duration
	Location   *time.Location
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    *metrics.DeskMetrics
}

// Client talks to the spreadsheet web app that persists every entity.
// It holds no state beyond its configuration; callers own caching.
type Client struct {
	httpClient *http.Client
	endpoint   string
	loc        *time.Location
	logger     *logging.Logger
	metrics    *metrics.DeskMetrics
	now        func() time.Time
}

// WriteResult is the outcome of a successful write. Row is the echoed row
// when the remote store returned one.
type WriteResult struct {
	Message string
	Row     json.RawMessage
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func New(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("sheets: endpoint is required")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("sheets: invalid endpoint: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		loc:        loc,
		logger:     logger,
		metrics:    cfg.Metrics,
		now:        time.Now,
	}, nil
}

// Location is the clinic timezone used for date normalization.
func (c *Client) Location() *time.Location { return c.loc }

// FetchAll reads every sheet, bypassing intermediary caches.
func (c *Client) FetchAll(ctx context.Context) (RawData, error) {
	const op = "fetch_all"
	ctx, span := tracer.Start(ctx, "sheets.FetchAll", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	u, _ := url.Parse(c.endpoint)
	q := u.Query()
	q.Set("_ts", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, c.fail(span, op, &TransportError{Op: op, Err: err}, time.Now())
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	start := time.Now()
	env, err := c.do(req, op)
	if err != nil {
		return nil, c.fail(span, op, err, start)
	}

	data := RawData{}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, c.fail(span, op, &MalformedResponseError{Op: op, Body: truncate(string(env.Data)), Err: err}, start)
		}
	}

	rows := 0
	for _, sheetRows := range data {
		rows += len(sheetRows)
	}
	span.SetAttributes(attribute.Int("sheets.rows", rows))
	c.metrics.ObserveGatewayRequest(op, "ok", time.Since(start).Seconds())
	return data, nil
}

// Load fetches every sheet and decodes it into a dataset. Quarantined rows
// are logged and returned alongside the dataset.
func (c *Client) Load(ctx context.Context) (*clinic.Dataset, []RowError, error) {
	raw, err := c.FetchAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	data, rowErrs := Decode(raw, c.loc)
	if len(rowErrs) > 0 {
		perSheet := map[string]int{}
		for _, re := range rowErrs {
			perSheet[re.Sheet]++
			c.logger.Warn("quarantined remote row", "sheet", re.Sheet, "index", re.Index, "error", re.Err)
		}
		for sheet, n := range perSheet {
			c.metrics.ObserveQuarantined(sheet, n)
		}
	}
	return data, rowErrs, nil
}

// Write appends a row to sheet, or updates one when the payload carries
// action=update and the row id.
func (c *Client) Write(ctx context.Context, sheet string, payload *Payload) (*WriteResult, error) {
	op := "write"
	if v, ok := payload.Get("action"); ok && v == ActionUpdate {
		op = "update"
	}
	ctx, span := tracer.Start(ctx, "sheets.Write", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("sheets.sheet", sheet), attribute.String("sheets.op", op))

	body := NewPayload().Set("sheet", sheet)
	for _, k := range payload.Keys() {
		v, _ := payload.Get(k)
		body.Set(k, v)
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("sheets: marshal %s payload: %w", sheet, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, c.fail(span, op, &TransportError{Op: op, Err: err}, time.Now())
	}
	// Apps Script web apps reject CORS-preflighted content types.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	env, err := c.do(req, op)
	if err != nil {
		return nil, c.fail(span, op, err, start)
	}

	result := &WriteResult{Message: env.Message}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		result.Row = env.Data
	}
	span.SetAttributes(attribute.Bool("sheets.echoed_row", result.Row != nil))
	c.metrics.ObserveGatewayRequest(op, "ok", time.Since(start).Seconds())
	c.logger.Debug("remote write accepted", "sheet", sheet, "op", op, "echoed_row", result.Row != nil)
	return result, nil
}

func (c *Client) do(req *http.Request, op string) (*envelope, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := truncate(string(respBody))
		c.logger.Warn("remote store non-2xx response", "status", resp.StatusCode, "op", op, "body", msg)
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		c.logger.Warn("remote store returned invalid JSON", "op", op, "body", truncate(string(respBody)))
		return nil, &MalformedResponseError{Op: op, Body: truncate(string(respBody)), Err: err}
	}
	if !env.Success {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = "remote store reported failure"
		}
		return nil, &RemoteError{Op: op, Message: msg}
	}
	return &env, nil
}

func (c *Client) fail(span trace.Span, op string, err error, start time.Time) error {
	outcome := "transport_error"
	switch {
	case IsRemote(err):
		outcome = "remote_error"
	case errors.As(err, new(*MalformedResponseError)):
		outcome = "malformed"
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	c.metrics.ObserveGatewayRequest(op, outcome, time.Since(start).Seconds())
	return err
}

func truncate(s string) string {
	if len(s) > 300 {
		return s[:300]
	}
	return s
}
