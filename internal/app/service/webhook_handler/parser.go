package webhook_handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/fatflowers/checkout/pkg/types"
)

var ErrNoPaymentID = errors.New("notification carries no payment id")

// Notification is what a provider payload tells us. It is only a trigger:
// status always comes from the provider API.
type Notification struct {
	ExternalID string
	Event      string
	// Card-on-file references, when the provider sends them.
	CustomerRef      string
	PaymentMethodRef string
}

// NotificationParser extracts the provider payment id from a raw payload.
// query holds the notification URL parameters, some providers put the id there.
type NotificationParser func(payload []byte, query url.Values) (*Notification, error)

var parsers = map[types.Gateway]NotificationParser{
	types.GatewayMercadoPago: parseMercadoPago,
	types.GatewayEfi:         parseEfi,
	types.GatewayPushinPay:   parsePushinPay,
	types.GatewayBeehive:     parseBeehive,
	types.GatewayHypercash:   parseHypercash,
	types.GatewayStripe:      parseStripe,
}

func ParseNotification(gw types.Gateway, payload []byte, query url.Values) (*Notification, error) {
	p, ok := parsers[gw]
	if !ok {
		return nil, fmt.Errorf("no parser for gateway %s", gw)
	}
	n, err := p(payload, query)
	if err != nil {
		return nil, err
	}
	if n.ExternalID == "" {
		return nil, ErrNoPaymentID
	}
	return n, nil
}

// jsonID accepts ids sent as strings or numbers.
type jsonID string

func (j *jsonID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*j = jsonID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*j = jsonID(n.String())
	return nil
}

func decode(payload []byte, v any) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("malformed notification: %w", err)
	}
	return nil
}

func parseMercadoPago(payload []byte, query url.Values) (*Notification, error) {
	var body struct {
		Type   string `json:"type"`
		Action string `json:"action"`
		Data   struct {
			ID jsonID `json:"id"`
		} `json:"data"`
	}
	if err := decode(payload, &body); err != nil {
		return nil, err
	}
	id := string(body.Data.ID)
	if id == "" {
		// IPN style: ?topic=payment&id=123 or ?type=payment&data.id=123
		id = firstNonEmpty(query.Get("data.id"), query.Get("id"))
	}
	return &Notification{ExternalID: id, Event: firstNonEmpty(body.Action, body.Type, query.Get("topic"))}, nil
}

func parseEfi(payload []byte, _ url.Values) (*Notification, error) {
	var body struct {
		Pix []struct {
			TxID       string `json:"txid"`
			EndToEndID string `json:"endToEndId"`
		} `json:"pix"`
	}
	if err := decode(payload, &body); err != nil {
		return nil, err
	}
	for _, p := range body.Pix {
		if p.TxID != "" {
			return &Notification{ExternalID: p.TxID, Event: "pix"}, nil
		}
	}
	return &Notification{}, nil
}

func parsePushinPay(payload []byte, _ url.Values) (*Notification, error) {
	var body struct {
		ID     jsonID `json:"id"`
		Status string `json:"status"`
	}
	if err := decode(payload, &body); err != nil {
		return nil, err
	}
	return &Notification{ExternalID: string(body.ID), Event: body.Status}, nil
}

func parseBeehive(payload []byte, _ url.Values) (*Notification, error) {
	var body struct {
		ID   jsonID `json:"id"`
		Type string `json:"type"`
		Data struct {
			ID jsonID `json:"id"`
		} `json:"data"`
	}
	if err := decode(payload, &body); err != nil {
		return nil, err
	}
	return &Notification{ExternalID: firstNonEmpty(string(body.Data.ID), string(body.ID)), Event: body.Type}, nil
}

func parseHypercash(payload []byte, _ url.Values) (*Notification, error) {
	var body struct {
		ID        jsonID `json:"id"`
		PaymentID jsonID `json:"payment_id"`
		Event     string `json:"event"`
	}
	if err := decode(payload, &body); err != nil {
		return nil, err
	}
	return &Notification{ExternalID: firstNonEmpty(string(body.PaymentID), string(body.ID)), Event: body.Event}, nil
}

func parseStripe(payload []byte, _ url.Values) (*Notification, error) {
	var body struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID            string `json:"id"`
				Object        string `json:"object"`
				PaymentIntent string `json:"payment_intent"`
				Customer      string `json:"customer"`
				PaymentMethod string `json:"payment_method"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := decode(payload, &body); err != nil {
		return nil, err
	}
	obj := body.Data.Object
	id := obj.ID
	// charge and refund events point at their payment intent
	if obj.Object != "payment_intent" && obj.PaymentIntent != "" {
		id = obj.PaymentIntent
	}
	return &Notification{ExternalID: id, Event: body.Type, CustomerRef: obj.Customer, PaymentMethodRef: obj.PaymentMethod}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
