package types

// GatewayCredentials is the per-seller secret material for one provider.
// Each adapter reads only the fields it needs.
type GatewayCredentials struct {
	AccessToken   string `json:"access_token,omitempty"`
	SecretKey     string `json:"secret_key,omitempty"`
	PublicKey     string `json:"public_key,omitempty"`
	ClientID      string `json:"client_id,omitempty"`
	ClientSecret  string `json:"client_secret,omitempty"`
	Certificate   string `json:"certificate,omitempty"`
	PrivateKey    string `json:"private_key,omitempty"`
	PixKey        string `json:"pix_key,omitempty"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
	// Currency is the settlement currency of the account, empty means BRL.
	Currency string `json:"currency,omitempty"`
	Sandbox  bool   `json:"sandbox,omitempty"`
}

func (c GatewayCredentials) SettlementCurrency() string {
	if c.Currency == "" {
		return "BRL"
	}
	return c.Currency
}
