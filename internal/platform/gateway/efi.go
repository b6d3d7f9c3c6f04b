package gateway

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/fatflowers/checkout/pkg/tool"
	"github.com/fatflowers/checkout/pkg/types"
)

const (
	efiBaseURL        = "https://pix.api.efipay.com.br"
	efiSandboxBaseURL = "https://pix-h.api.efipay.com.br"
	efiChargeTTL      = 3600
)

var efiStatus = map[string]types.PaymentStatus{
	"ativa":                           types.PaymentStatusPending,
	"concluida":                       types.PaymentStatusApproved,
	"removida_pelo_usuario_recebedor": types.PaymentStatusCancelled,
	"removida_pelo_psp":               types.PaymentStatusExpired,
}

// Efi issues PIX charges over a mutually authenticated TLS channel.
// Every call carries an OAuth2 client-credentials token.
type Efi struct {
	rest   *restClient
	pixKey string
}

func NewEfi(creds types.GatewayCredentials, opts Options) (*Efi, error) {
	switch {
	case creds.ClientID == "":
		return nil, fmt.Errorf("%w: clientId obrigatorio", ErrMissingCredential)
	case creds.ClientSecret == "":
		return nil, fmt.Errorf("%w: clientSecret obrigatorio", ErrMissingCredential)
	case creds.Certificate == "" || creds.PrivateKey == "":
		return nil, fmt.Errorf("%w: certificado obrigatorio", ErrMissingCredential)
	case creds.PixKey == "":
		return nil, fmt.Errorf("%w: chave pix obrigatoria", ErrMissingCredential)
	}
	cert, err := tls.X509KeyPair([]byte(creds.Certificate), []byte(creds.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("%w: certificado invalido: %v", ErrMissingCredential, err)
	}

	def := efiBaseURL
	if creds.Sandbox {
		def = efiSandboxBaseURL
	}
	base := opts.baseURL(def)

	mtls := opts.client()
	if opts.HTTPClient == nil {
		mtls.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12},
		}
	}
	oauth := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     base + "/oauth/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, mtls)
	client := oauth.Client(tokenCtx)
	client.Timeout = mtls.Timeout

	return &Efi{
		rest:   &restClient{gateway: types.GatewayEfi, baseURL: base, http: client},
		pixKey: creds.PixKey,
	}, nil
}

func (e *Efi) Name() types.Gateway { return types.GatewayEfi }

type efiCharge struct {
	TxID   string `json:"txid"`
	Status string `json:"status"`
	Loc    struct {
		ID int64 `json:"id"`
	} `json:"loc"`
	PixCopiaECola string `json:"pixCopiaECola"`
	Valor         struct {
		Original string `json:"original"`
	} `json:"valor"`
	Pix []struct {
		EndToEndID string `json:"endToEndId"`
		Devolucoes []struct {
			Valor  string `json:"valor"`
			Status string `json:"status"`
		} `json:"devolucoes"`
	} `json:"pix"`
}

// refunded reports whether completed devolucoes cover the whole charge.
// Partial devolucoes leave the sale approved.
func (c *efiCharge) refunded() bool {
	original, err := decimal.NewFromString(c.Valor.Original)
	if err != nil || !original.IsPositive() {
		return false
	}
	returned := decimal.Zero
	for _, p := range c.Pix {
		for _, d := range p.Devolucoes {
			if !strings.EqualFold(d.Status, "DEVOLVIDO") {
				continue
			}
			if v, err := decimal.NewFromString(d.Valor); err == nil {
				returned = returned.Add(v)
			}
		}
	}
	return returned.GreaterThanOrEqual(original)
}

func (e *Efi) CreatePayment(ctx context.Context, in *PaymentInput) (*PaymentResult, error) {
	if in.Method != types.PaymentMethodPix {
		return Declined("Efi aceita apenas PIX"), nil
	}
	devedor := map[string]string{"nome": in.Customer.Name}
	doc := in.Customer.TaxIDDigits()
	if len(doc) == 14 {
		devedor["cnpj"] = doc
	} else {
		devedor["cpf"] = doc
	}
	body := map[string]any{
		"calendario":         map[string]int{"expiracao": efiChargeTTL},
		"devedor":            devedor,
		"valor":              map[string]string{"original": in.Amount.StringFixed(2)},
		"chave":              e.pixKey,
		"solicitacaoPagador": truncate(in.Description, 140),
	}

	// txid must be 26-35 alphanumerics
	txid := strings.ReplaceAll(in.Reference, "-", "")
	if len(txid) < 26 {
		txid += tool.RandomHex(16)[:26-len(txid)]
	}
	txid = truncate(txid, 35)

	var charge efiCharge
	if err := e.rest.doJSON(ctx, "create_payment", http.MethodPut, "/v2/cob/"+txid, body, &charge, nil); err != nil {
		if apiErr, ok := asDecline(err); ok {
			return Declined(errorMessage(apiErr.Body, "mensagem", "error_description")), nil
		}
		return nil, err
	}

	res := &PaymentResult{
		Success:          true,
		GatewayPaymentID: charge.TxID,
		Status:           mapStatus(efiStatus, charge.Status),
		PixCode:          charge.PixCopiaECola,
	}
	if charge.Loc.ID != 0 {
		var qr struct {
			QRCode       string `json:"qrcode"`
			ImagemQRCode string `json:"imagemQrcode"`
		}
		if err := e.rest.doJSON(ctx, "qrcode", http.MethodGet, fmt.Sprintf("/v2/loc/%d/qrcode", charge.Loc.ID), nil, &qr, nil); err == nil {
			if res.PixCode == "" {
				res.PixCode = qr.QRCode
			}
			res.PixQRCode = qr.ImagemQRCode
		}
	}
	return res, nil
}

func (e *Efi) getCharge(ctx context.Context, txid string) (*efiCharge, error) {
	var charge efiCharge
	if err := e.rest.doJSON(ctx, "get_status", http.MethodGet, "/v2/cob/"+url.PathEscape(txid), nil, &charge, nil); err != nil {
		return nil, err
	}
	return &charge, nil
}

func (e *Efi) GetStatus(ctx context.Context, paymentID string) (types.PaymentStatus, error) {
	charge, err := e.getCharge(ctx, paymentID)
	if err != nil {
		return "", err
	}
	if charge.refunded() {
		return types.PaymentStatusRefunded, nil
	}
	return mapStatus(efiStatus, charge.Status), nil
}

func (e *Efi) Refund(ctx context.Context, paymentID string, amount *decimal.Decimal) (*RefundResult, error) {
	charge, err := e.getCharge(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if len(charge.Pix) == 0 || charge.Pix[0].EndToEndID == "" {
		return &RefundResult{Success: false, Error: "cobranca sem pagamento para devolver"}, nil
	}
	value := charge.Valor.Original
	if amount != nil {
		value = amount.StringFixed(2)
	}
	refundID := tool.RandomHex(8)
	var out struct {
		ID     string `json:"id"`
		RtrID  string `json:"rtrId"`
		Status string `json:"status"`
	}
	path := fmt.Sprintf("/v2/pix/%s/devolucao/%s", url.PathEscape(charge.Pix[0].EndToEndID), refundID)
	if err := e.rest.doJSON(ctx, "refund", http.MethodPut, path, map[string]string{"valor": value}, &out, nil); err != nil {
		if apiErr, ok := asDecline(err); ok {
			return &RefundResult{Success: false, Error: errorMessage(apiErr.Body, "mensagem")}, nil
		}
		return nil, err
	}
	id := out.RtrID
	if id == "" {
		id = out.ID
	}
	return &RefundResult{
		Success:  !strings.EqualFold(out.Status, "NAO_REALIZADO"),
		RefundID: id,
		Pending:  strings.EqualFold(out.Status, "EM_PROCESSAMENTO"),
	}, nil
}

// VerifyWebhook always accepts: Efi authenticates notifications with mutual
// TLS at the edge, there is no payload signature to check.
func (e *Efi) VerifyWebhook(*Webhook) bool { return true }
