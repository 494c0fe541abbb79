package enums

import "fmt"

// Gateway identifies an external payment provider.
type Gateway string

const (
	GatewayStripe      Gateway = "stripe"
	GatewayPayPal      Gateway = "paypal"
	GatewayMercadoPago Gateway = "mercadopago"
	GatewayPagarme     Gateway = "pagarme"
	GatewayPagSeguro   Gateway = "pagseguro"
	GatewayPicPay      Gateway = "picpay"
)

var validGateways = []Gateway{
	GatewayStripe,
	GatewayPayPal,
	GatewayMercadoPago,
	GatewayPagarme,
	GatewayPagSeguro,
	GatewayPicPay,
}

// String implements fmt.Stringer.
func (g Gateway) String() string {
	return string(g)
}

// IsValid reports whether the value is a known Gateway.
func (g Gateway) IsValid() bool {
	for _, candidate := range validGateways {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGateway converts raw input into a Gateway.
func ParseGateway(value string) (Gateway, error) {
	for _, candidate := range validGateways {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway %q", value)
}
