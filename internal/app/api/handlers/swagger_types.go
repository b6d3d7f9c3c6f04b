package handlers

import (
	"github.com/fatflowers/checkout/internal/app/service/checkout"
	"github.com/fatflowers/checkout/internal/app/service/statistics"
	"github.com/fatflowers/checkout/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespPayment wraps checkout.PaymentResponse in the standard envelope.
type RespPayment struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    checkout.PaymentResponse `json:"data"`
}

type RespStatus struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    checkout.StatusResponse  `json:"data"`
}

type RespRefund struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    checkout.RefundResponse  `json:"data"`
}

// RespListTransactions wraps ListTransactionsResponse in the standard envelope.
type RespListTransactions struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ListTransactionsResponse `json:"data"`
}

// RespSalesStatistic wraps SalesStatisticResponse in the standard envelope.
type RespSalesStatistic struct {
	Code    response.APIResponseCode          `json:"code"`
	Message string                            `json:"message"`
	Data    statistics.SalesStatisticResponse `json:"data"`
}
