package momo

import (
	"fmt"
	"strconv"
	"strings"

	"shop-svc/signature"
)

// CreateRequest is the body of the create-payment call.
type CreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	PartnerName string `json:"partnerName"`
	StoreID     string `json:"storeId"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IpnURL      string `json:"ipnUrl"`
	Lang        string `json:"lang"`
	RequestType string `json:"requestType"`
	AutoCapture bool   `json:"autoCapture"`
	ExtraData   string `json:"extraData"`
	Signature   string `json:"signature"`
}

type CreateResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	ResponseTime int64  `json:"responseTime"`
	Message      string `json:"message"`
	ResultCode   int    `json:"resultCode"`
	PayURL       string `json:"payUrl"`
	Deeplink     string `json:"deeplink,omitempty"`
	QRCodeURL    string `json:"qrCodeUrl,omitempty"`
}

// Callback is the IPN body posted by the provider once the payment settles.
type Callback struct {
	PartnerCode  string `json:"partnerCode" binding:"required"`
	OrderID      string `json:"orderId" binding:"required"`
	RequestID    string `json:"requestId" binding:"required"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature" binding:"required"`
}

const ResultSuccess = 0

func (c Callback) Succeeded() bool {
	return c.ResultCode == ResultSuccess
}

func createFields(accessKey string, r CreateRequest) []signature.Field {
	return []signature.Field{
		signature.F("accessKey", accessKey),
		signature.F("amount", strconv.FormatInt(r.Amount, 10)),
		signature.F("extraData", r.ExtraData),
		signature.F("ipnUrl", r.IpnURL),
		signature.F("orderId", r.OrderID),
		signature.F("orderInfo", r.OrderInfo),
		signature.F("partnerCode", r.PartnerCode),
		signature.F("redirectUrl", r.RedirectURL),
		signature.F("requestId", r.RequestID),
		signature.F("requestType", r.RequestType),
	}
}

func callbackFields(accessKey string, c Callback) []signature.Field {
	return []signature.Field{
		signature.F("accessKey", accessKey),
		signature.F("amount", strconv.FormatInt(c.Amount, 10)),
		signature.F("extraData", c.ExtraData),
		signature.F("message", c.Message),
		signature.F("orderId", c.OrderID),
		signature.F("orderInfo", c.OrderInfo),
		signature.F("orderType", c.OrderType),
		signature.F("partnerCode", c.PartnerCode),
		signature.F("payType", c.PayType),
		signature.F("requestId", c.RequestID),
		signature.F("responseTime", strconv.FormatInt(c.ResponseTime, 10)),
		signature.F("resultCode", strconv.Itoa(c.ResultCode)),
		signature.F("transId", strconv.FormatInt(c.TransID, 10)),
	}
}

// RequestID builds the provider correlation id "{orderID}-{epochMillis}".
func RequestID(orderID int64, epochMillis int64) string {
	return fmt.Sprintf("%d-%d", orderID, epochMillis)
}

// ParseOrderID recovers the internal order id from a RequestID value.
func ParseOrderID(requestID string) (int64, error) {
	head, tail, ok := strings.Cut(requestID, "-")
	if !ok {
		return 0, fmt.Errorf("request id %q has no separator", requestID)
	}
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("request id %q has invalid order part", requestID)
	}
	if _, err := strconv.ParseInt(tail, 10, 64); err != nil {
		return 0, fmt.Errorf("request id %q has invalid timestamp part", requestID)
	}
	return id, nil
}
