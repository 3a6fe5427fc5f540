package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"shop-svc/circuitbreaker"
	"shop-svc/config"
	"shop-svc/models"
	"shop-svc/signature"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxResponseBody = 64 << 10

type Client struct {
	cfg            config.MomoConfig
	signer         *signature.Signer
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
	now            func() time.Time
}

func NewClient(cfg config.MomoConfig, signer *signature.Signer, logger *zap.Logger) *Client {
	return &Client{
		cfg:            cfg,
		signer:         signer,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: circuitbreaker.NewCircuitBreaker(5, 30*time.Second),
		logger:         logger,
		now:            time.Now,
	}
}

// CreatePayment asks the provider for a payment session. It is never retried here.
func (c *Client) CreatePayment(ctx context.Context, orderID int64, amount decimal.Decimal, orderInfo string) (*CreateResponse, error) {
	ctx, span := otel.Tracer("shop-svc").Start(ctx, "momo.CreatePayment")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqID := RequestID(orderID, c.now().UnixMilli())
	req := CreateRequest{
		PartnerCode: c.cfg.PartnerCode,
		PartnerName: c.cfg.PartnerName,
		StoreID:     c.cfg.StoreID,
		RequestID:   reqID,
		Amount:      amount.Round(0).IntPart(),
		OrderID:     reqID,
		OrderInfo:   orderInfo,
		RedirectURL: c.cfg.RedirectURL,
		IpnURL:      c.cfg.IPNURL,
		Lang:        c.cfg.Lang,
		RequestType: c.cfg.RequestType,
		AutoCapture: true,
		ExtraData:   "",
	}
	req.Signature = c.signer.Sign(createFields(c.cfg.AccessKey, req))

	span.SetAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("momo.request_id", reqID),
	)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &models.GatewayError{Op: "create", Err: err}
	}

	var resp CreateResponse
	err = c.circuitBreaker.Execute(ctx, func() error {
		return c.post(ctx, body, &resp)
	})
	if err != nil {
		span.RecordError(err)
		var gwErr *models.GatewayError
		if errors.As(err, &gwErr) {
			return nil, gwErr
		}
		return nil, &models.GatewayError{Op: "create", Err: err}
	}

	if resp.ResultCode != ResultSuccess {
		c.logger.Warn("MoMo rejected payment request",
			zap.Int64("order_id", orderID),
			zap.String("request_id", reqID),
			zap.Int("result_code", resp.ResultCode),
			zap.String("message", resp.Message),
		)
		return nil, &models.GatewayError{Op: "create", ResultCode: resp.ResultCode, ProviderMessage: resp.Message}
	}
	if resp.PayURL == "" {
		return nil, &models.GatewayError{Op: "create", Err: errors.New("response has no payUrl")}
	}

	c.logger.Info("MoMo payment created",
		zap.Int64("order_id", orderID),
		zap.String("request_id", reqID),
	)
	return &resp, nil
}

func (c *Client) post(ctx context.Context, body []byte, out *CreateResponse) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return &models.GatewayError{Op: "create", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= http.StatusInternalServerError {
		c.logger.Error("MoMo returned server error",
			zap.Int("status", httpResp.StatusCode),
			zap.ByteString("body", raw),
		)
		return fmt.Errorf("provider status %d", httpResp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Error("Failed to decode MoMo response",
			zap.Int("status", httpResp.StatusCode),
			zap.ByteString("body", raw),
			zap.Error(err),
		)
		return fmt.Errorf("decode response: %w", err)
	}

	// 4xx carries a result code in the body; it is a business rejection, not an outage.
	if httpResp.StatusCode >= http.StatusBadRequest && out.ResultCode == ResultSuccess {
		out.ResultCode = httpResp.StatusCode
		out.Message = http.StatusText(httpResp.StatusCode)
	}
	return nil
}

// VerifyCallback checks the partner code and the IPN signature.
func (c *Client) VerifyCallback(cb Callback) bool {
	if cb.PartnerCode != c.cfg.PartnerCode {
		return false
	}
	return c.signer.Verify(callbackFields(c.cfg.AccessKey, cb), cb.Signature)
}

// SignCallback produces the signature the provider would attach to cb.
// Used by tooling and tests that simulate provider notifications.
func (c *Client) SignCallback(cb Callback) string {
	return c.signer.Sign(callbackFields(c.cfg.AccessKey, cb))
}
