// Package baostock implements the Provider interface against a BaoStock
// HTTP gateway. The gateway fronts the upstream TCP protocol and returns
// tabular JSON: a fields array naming the columns and a rows array of
// string cells, the shape BaoStock itself produces.
package baostock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wateryu2030/newhigh-zh/internal/config"
	"github.com/wateryu2030/newhigh-zh/internal/domain"
	"github.com/wateryu2030/newhigh-zh/internal/provider"
)

// Compile-time interface check.
var _ provider.Provider = (*Client)(nil)

// Client talks to the BaoStock gateway.
type Client struct {
	endpoint string
	http     *http.Client
	log      *slog.Logger

	mu    sync.Mutex
	token string
}

// New builds a gateway client from the provider config section.
func New(cfg config.Provider, log *slog.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
		log:      log.With("component", "baostock"),
	}
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type request struct {
	Method string            `json:"method"`
	Token  string            `json:"token,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

type response struct {
	Code   string     `json:"error_code"`
	Msg    string     `json:"error_msg"`
	Token  string     `json:"token,omitempty"`
	Fields []string   `json:"fields"`
	Rows   [][]string `json:"rows"`
}

// Gateway error codes, mirroring the upstream protocol.
const (
	codeOK           = "0"
	codeSessionLost  = "10001"
	codeLoginFailed  = "10002"
	codeRateLimited  = "10004"
	codeInvalidParam = "10005"
)

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// exec posts one gateway call. On an expired session it logs in again and
// repeats the call once; every other failure is classified and returned.
func (c *Client) exec(ctx context.Context, method string, params map[string]string) (*table, error) {
	resp, err := c.post(ctx, method, params)
	if err == nil {
		return resp, nil
	}
	var pe *provider.Error
	if !errors.As(err, &pe) || pe.Kind != provider.Auth {
		return nil, err
	}
	c.log.Info("session expired, logging in again", "method", method)
	if lerr := c.login(ctx); lerr != nil {
		return nil, lerr
	}
	return c.post(ctx, method, params)
}

func (c *Client) post(ctx context.Context, method string, params map[string]string) (*table, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	body, err := json.Marshal(request{Method: method, Token: token, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, &provider.Error{Kind: provider.Transient, Op: method, Msg: "gateway unreachable", Err: err}
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, provider.Errf(provider.RateLimited, method, "gateway returned 429")
	case httpResp.StatusCode >= 500:
		return nil, provider.Errf(provider.Transient, method, "gateway returned %d", httpResp.StatusCode)
	case httpResp.StatusCode != http.StatusOK:
		return nil, provider.Errf(provider.Transient, method, "unexpected status %d", httpResp.StatusCode)
	}

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &provider.Error{Kind: provider.Transient, Op: method, Msg: "read response", Err: err}
	}
	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, &provider.Error{Kind: provider.Transient, Op: method, Msg: "decode response", Err: err}
	}

	switch r.Code {
	case codeOK, "":
	case codeSessionLost, codeLoginFailed:
		return nil, provider.Errf(provider.Auth, method, "%s", r.Msg)
	case codeRateLimited:
		return nil, provider.Errf(provider.RateLimited, method, "%s", r.Msg)
	case codeInvalidParam:
		return nil, provider.Errf(provider.InvalidCode, method, "%s", r.Msg)
	default:
		return nil, provider.Errf(provider.Transient, method, "gateway error %s: %s", r.Code, r.Msg)
	}

	if r.Token != "" {
		c.mu.Lock()
		c.token = r.Token
		c.mu.Unlock()
	}
	return newTable(method, r.Fields, r.Rows)
}

// login opens a fresh gateway session. BaoStock sessions are anonymous.
func (c *Client) login(ctx context.Context) error {
	_, err := c.post(ctx, "login", nil)
	return err
}

// ---------------------------------------------------------------------------
// Code mapping
// ---------------------------------------------------------------------------

// toProviderCode maps 600000.SH to the BaoStock form sh.600000.
func toProviderCode(tsCode string) string {
	i := strings.IndexByte(tsCode, '.')
	if i < 0 {
		return tsCode
	}
	return strings.ToLower(tsCode[i+1:]) + "." + tsCode[:i]
}

// fromProviderCode maps sh.600000 back to 600000.SH.
func fromProviderCode(code string) string {
	i := strings.IndexByte(code, '.')
	if i < 0 {
		return code
	}
	return code[i+1:] + "." + strings.ToUpper(code[:i])
}

// ---------------------------------------------------------------------------
// Provider implementation
// ---------------------------------------------------------------------------

var instrumentFields = []string{"code", "code_name", "ipoDate", "outDate", "type", "status"}

func (c *Client) Instruments(ctx context.Context) ([]domain.Instrument, error) {
	t, err := c.exec(ctx, "query_stock_basic", nil)
	if err != nil {
		return nil, err
	}
	if err := t.require(instrumentFields); err != nil {
		return nil, err
	}
	out := make([]domain.Instrument, 0, len(t.rows))
	for i := range t.rows {
		code := t.cell(i, "code")
		// type 1 = stock; indexes and funds are listed separately.
		if t.cell(i, "type") != "1" {
			continue
		}
		tsCode := fromProviderCode(code)
		inst := domain.Instrument{
			TSCode:   tsCode,
			Symbol:   symbolOf(tsCode),
			Name:     t.cell(i, "code_name"),
			Market:   marketOf(tsCode),
			ListDate: t.cell(i, "ipoDate"),
		}
		if t.cell(i, "status") == "0" {
			inst.DelistDate = t.cell(i, "outDate")
		}
		out = append(out, inst)
	}
	return out, nil
}

var dailyFields = []string{
	"date", "code", "open", "high", "low", "close", "preclose",
	"volume", "amount", "turn", "pctChg", "peTTM", "pbMRQ", "psTTM",
}

func (c *Client) DailyBars(ctx context.Context, code, start, end string) ([]domain.DailyBar, error) {
	t, err := c.exec(ctx, "query_history_k_data_plus", map[string]string{
		"code":       toProviderCode(code),
		"fields":     strings.Join(dailyFields, ","),
		"start_date": start,
		"end_date":   end,
		"frequency":  "d",
		"adjustflag": "3",
	})
	if err != nil {
		return nil, err
	}
	if err := t.require(dailyFields); err != nil {
		return nil, err
	}
	out := make([]domain.DailyBar, 0, len(t.rows))
	for i := range t.rows {
		b := domain.DailyBar{
			TSCode:    fromProviderCode(t.cell(i, "code")),
			TradeDate: t.cell(i, "date"),
			Open:      t.f(i, "open"),
			High:      t.f(i, "high"),
			Low:       t.f(i, "low"),
			Close:     t.f(i, "close"),
			PreClose:  t.f(i, "preclose"),
			PctChg:    t.f(i, "pctChg"),
			Volume:    t.f(i, "volume"),
			Amount:    t.f(i, "amount"),
		}
		b.TurnoverRate = t.fp(i, "turn")
		b.PETTM = t.fp(i, "peTTM")
		b.PBMRQ = t.fp(i, "pbMRQ")
		b.PSTTM = t.fp(i, "psTTM")
		if b.PreClose > 0 {
			amp := (b.High - b.Low) / b.PreClose * 100
			b.Amplitude = &amp
		}
		out = append(out, b)
	}
	return out, nil
}

var financialFields = []string{
	"code", "statDate", "roeAvg", "npMargin", "gpMargin", "epsTTM",
	"totalShare", "liqaShare", "YOYEquity", "YOYAsset", "YOYNI",
}

func (c *Client) Financials(ctx context.Context, code, start, end string) ([]domain.FinancialSnapshot, error) {
	t, err := c.exec(ctx, "query_profit_data", map[string]string{
		"code":       toProviderCode(code),
		"start_date": start,
		"end_date":   end,
	})
	if err != nil {
		return nil, err
	}
	if err := t.require(financialFields); err != nil {
		return nil, err
	}
	out := make([]domain.FinancialSnapshot, 0, len(t.rows))
	for i := range t.rows {
		out = append(out, domain.FinancialSnapshot{
			TSCode:            fromProviderCode(t.cell(i, "code")),
			TradeDate:         t.cell(i, "statDate"),
			ROE:               t.fp(i, "roeAvg"),
			EPS:               t.fp(i, "epsTTM"),
			GrossProfitMargin: t.fp(i, "gpMargin"),
			RevenueYoY:        t.fp(i, "YOYEquity"),
			NetProfitYoY:      t.fp(i, "YOYNI"),
		})
	}
	return out, nil
}

var moneyFlowFields = []string{
	"date", "code", "net_amount", "buy_lg_amount", "sell_lg_amount",
	"buy_md_amount", "sell_md_amount", "buy_sm_amount", "sell_sm_amount",
}

func (c *Client) MoneyFlows(ctx context.Context, code, start, end string) ([]domain.MoneyFlow, error) {
	t, err := c.exec(ctx, "query_money_flow", map[string]string{
		"code":       toProviderCode(code),
		"start_date": start,
		"end_date":   end,
	})
	if err != nil {
		return nil, err
	}
	if err := t.require(moneyFlowFields); err != nil {
		return nil, err
	}
	out := make([]domain.MoneyFlow, 0, len(t.rows))
	for i := range t.rows {
		out = append(out, domain.MoneyFlow{
			TSCode:       fromProviderCode(t.cell(i, "code")),
			TradeDate:    t.cell(i, "date"),
			NetAmount:    t.fp(i, "net_amount"),
			BuyLgAmount:  t.fp(i, "buy_lg_amount"),
			SellLgAmount: t.fp(i, "sell_lg_amount"),
			BuyMdAmount:  t.fp(i, "buy_md_amount"),
			SellMdAmount: t.fp(i, "sell_md_amount"),
			BuySmAmount:  t.fp(i, "buy_sm_amount"),
			SellSmAmount: t.fp(i, "sell_sm_amount"),
		})
	}
	return out, nil
}

var industryFields = []string{"updateDate", "code", "code_name", "industry", "industryClassification"}

func (c *Client) ConceptIndustry(ctx context.Context) ([]domain.ConceptIndustry, error) {
	t, err := c.exec(ctx, "query_stock_industry", nil)
	if err != nil {
		return nil, err
	}
	if err := t.require(industryFields); err != nil {
		return nil, err
	}
	out := make([]domain.ConceptIndustry, 0, len(t.rows))
	for i := range t.rows {
		industry := t.cell(i, "industry")
		if industry == "" {
			continue
		}
		out = append(out, domain.ConceptIndustry{
			TSCode:       fromProviderCode(t.cell(i, "code")),
			Concept:      industry,
			IndustrySW:   industry,
			IndustryCSRC: t.cell(i, "industryClassification"),
		})
	}
	return out, nil
}

var constituentFields = []string{"updateDate", "code", "code_name"}

// constituentMethods maps index keys to gateway methods.
var constituentMethods = map[string]string{
	"hs300": "query_hs300_stocks",
	"sz50":  "query_sz50_stocks",
	"zz500": "query_zz500_stocks",
}

// IndexNames maps index keys to display names.
var IndexNames = map[string]string{
	"hs300": "沪深300",
	"sz50":  "上证50",
	"zz500": "中证500",
}

func (c *Client) IndexConstituents(ctx context.Context, indexKey string) ([]domain.IndexConstituent, error) {
	method, ok := constituentMethods[indexKey]
	if !ok {
		return nil, provider.Errf(provider.InvalidCode, "index_constituents", "unknown index %q", indexKey)
	}
	t, err := c.exec(ctx, method, nil)
	if err != nil {
		return nil, err
	}
	if err := t.require(constituentFields); err != nil {
		return nil, err
	}
	out := make([]domain.IndexConstituent, 0, len(t.rows))
	for i := range t.rows {
		out = append(out, domain.IndexConstituent{
			IndexKey:  indexKey,
			IndexName: IndexNames[indexKey],
			TSCode:    fromProviderCode(t.cell(i, "code")),
			CodeName:  t.cell(i, "code_name"),
			Date:      t.cell(i, "updateDate"),
		})
	}
	return out, nil
}

var indexDailyFields = []string{
	"date", "code", "open", "high", "low", "close", "preclose",
	"volume", "amount", "pctChg",
}

func (c *Client) IndexDailyBars(ctx context.Context, indexCode, start, end string) ([]domain.IndexDailyBar, error) {
	t, err := c.exec(ctx, "query_history_k_data_plus", map[string]string{
		"code":       toProviderCode(indexCode),
		"fields":     strings.Join(indexDailyFields, ","),
		"start_date": start,
		"end_date":   end,
		"frequency":  "d",
	})
	if err != nil {
		return nil, err
	}
	if err := t.require(indexDailyFields); err != nil {
		return nil, err
	}
	out := make([]domain.IndexDailyBar, 0, len(t.rows))
	for i := range t.rows {
		out = append(out, domain.IndexDailyBar{
			IndexCode: fromProviderCode(t.cell(i, "code")),
			TradeDate: t.cell(i, "date"),
			Open:      t.f(i, "open"),
			High:      t.f(i, "high"),
			Low:       t.f(i, "low"),
			Close:     t.f(i, "close"),
			PreClose:  t.f(i, "preclose"),
			PctChg:    t.f(i, "pctChg"),
			Volume:    t.f(i, "volume"),
			Amount:    t.f(i, "amount"),
		})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Tabular decoding
// ---------------------------------------------------------------------------

// table is one tabular gateway response with a column index.
type table struct {
	op     string
	fields []string
	rows   [][]string
	idx    map[string]int
}

func newTable(op string, fields []string, rows [][]string) (*table, error) {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f] = i
	}
	for i, r := range rows {
		if len(r) != len(fields) {
			return nil, provider.Errf(provider.SchemaDrift, op,
				"row %d has %d cells, want %d", i, len(r), len(fields))
		}
	}
	return &table{op: op, fields: fields, rows: rows, idx: idx}, nil
}

// require fails with a SchemaDrift error when any expected column is absent.
func (t *table) require(fields []string) error {
	for _, f := range fields {
		if _, ok := t.idx[f]; !ok {
			return provider.Errf(provider.SchemaDrift, t.op,
				"column %q missing, got %v", f, t.fields)
		}
	}
	return nil
}

func (t *table) cell(row int, field string) string {
	return t.rows[row][t.idx[field]]
}

// f parses a required numeric cell; unparsable cells collapse to zero and
// are caught downstream by validation.
func (t *table) f(row int, field string) float64 {
	v, err := strconv.ParseFloat(t.cell(row, field), 64)
	if err != nil {
		return 0
	}
	return v
}

// fp parses an optional numeric cell; empty or unparsable cells become nil.
func (t *table) fp(row int, field string) *float64 {
	s := t.cell(row, field)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func symbolOf(tsCode string) string {
	if i := strings.IndexByte(tsCode, '.'); i > 0 {
		return tsCode[:i]
	}
	return tsCode
}

func marketOf(tsCode string) string {
	switch {
	case strings.HasSuffix(tsCode, ".SH"):
		return "SSE"
	case strings.HasSuffix(tsCode, ".SZ"):
		return "SZSE"
	default:
		return ""
	}
}
