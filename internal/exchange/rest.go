package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ccruz0/crypto-2.0-sub010/internal/quant"
)

const defaultRecvWindowMs = 5000

// RESTClient places orders and fetches instrument filters over the venue's
// signed REST API.
type RESTClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	recvWindow int64
	hc         *http.Client
	log        zerolog.Logger
}

// NewRESTClient builds a client against baseURL using the given credentials.
// The secret is held for request signing only and never logged.
func NewRESTClient(baseURL, apiKey, apiSecret string, recvWindowMs int64, log zerolog.Logger) *RESTClient {
	if recvWindowMs <= 0 {
		recvWindowMs = defaultRecvWindowMs
	}
	return &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		recvWindow: recvWindowMs,
		hc:         &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

func (c *RESTClient) sign(q url.Values) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	_, _ = io.WriteString(mac, q.Encode())
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *RESTClient) do(ctx context.Context, method, path string, q url.Values, signed bool) ([]byte, error) {
	if q == nil {
		q = url.Values{}
	}
	if signed {
		q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		q.Set("recvWindow", strconv.FormatInt(c.recvWindow, 10))
		q.Set("signature", c.sign(q))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		var reply struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if err := json.Unmarshal(body, &reply); err == nil && reply.Code != 0 {
			return nil, &APIError{Code: Code(reply.Code), Message: reply.Msg}
		}
		return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return body, nil
}

// PlaceOrder submits a formatted TP/SL order. The trigger condition encodes
// the stop price as "<op><price>"; only the price travels on the wire, the
// operator is implied by the order kind and side.
func (c *RESTClient) PlaceOrder(ctx context.Context, order Order) (Ack, error) {
	q := url.Values{}
	q.Set("symbol", order.Symbol)
	q.Set("side", string(order.Side))
	q.Set("type", string(order.Kind))
	q.Set("timeInForce", "GTC")
	q.Set("price", order.Price)
	q.Set("quantity", order.Quantity)
	q.Set("stopPrice", strings.TrimLeft(order.TriggerCondition, "<>="))
	if order.ClientOrderID != "" {
		q.Set("newClientOrderId", order.ClientOrderID)
	}

	body, err := c.do(ctx, http.MethodPost, "/api/v3/order", q, true)
	if err != nil {
		return Ack{}, err
	}
	var reply struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return Ack{}, fmt.Errorf("decode order ack: %w", err)
	}
	return Ack{OrderID: reply.OrderID, ClientOrderID: reply.ClientOrderID}, nil
}

// InstrumentMeta fetches the symbol's price and lot filters.
func (c *RESTClient) InstrumentMeta(ctx context.Context, symbol string) (Meta, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	body, err := c.do(ctx, http.MethodGet, "/api/v3/exchangeInfo", q, false)
	if err != nil {
		return Meta{}, err
	}

	var reply struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string `json:"filterType"`
				TickSize   string `json:"tickSize"`
				StepSize   string `json:"stepSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return Meta{}, fmt.Errorf("decode exchange info: %w", err)
	}

	for _, sym := range reply.Symbols {
		if !strings.EqualFold(sym.Symbol, symbol) {
			continue
		}
		var meta Meta
		for _, filter := range sym.Filters {
			switch filter.FilterType {
			case "PRICE_FILTER":
				tick, err := quant.NormalizeDecimalString(filter.TickSize)
				if err != nil {
					return Meta{}, fmt.Errorf("tick size for %s: %w", symbol, err)
				}
				meta.TickSize = tick
			case "LOT_SIZE":
				step, err := quant.NormalizeDecimalString(filter.StepSize)
				if err != nil {
					return Meta{}, fmt.Errorf("step size for %s: %w", symbol, err)
				}
				meta.StepSize = step
			}
		}
		if meta.TickSize.IsZero() || meta.StepSize.IsZero() {
			return Meta{}, fmt.Errorf("incomplete filters for %s", symbol)
		}
		return meta, nil
	}
	return Meta{}, fmt.Errorf("symbol %s not present in exchange info", symbol)
}
