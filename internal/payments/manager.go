package payments

import (
	"fmt"
	"net/http"
	"sort"
)

// ProvidersConfig enables the providers that carry a non-nil section.
type ProvidersConfig struct {
	OPay  *OPayConfig
	Mpesa *MpesaConfig
	Nsano *NsanoConfig
}

type PaymentManager struct {
	gateways map[Provider]PaymentGateway
}

func NewPaymentManager() *PaymentManager {
	return &PaymentManager{gateways: make(map[Provider]PaymentGateway)}
}

// NewManager builds and registers an adapter for every configured provider. A configured
// provider with missing credentials is an error.
func NewManager(cfg ProvidersConfig, client *http.Client) (*PaymentManager, error) {
	m := NewPaymentManager()

	if cfg.OPay != nil {
		g, err := NewOPayAdapter(*cfg.OPay, client)
		if err != nil {
			return nil, err
		}
		m.RegisterGateway(g)
	}
	if cfg.Mpesa != nil {
		g, err := NewMpesaAdapter(*cfg.Mpesa, client)
		if err != nil {
			return nil, err
		}
		m.RegisterGateway(g)
	}
	if cfg.Nsano != nil {
		g, err := NewNsanoAdapter(*cfg.Nsano, client)
		if err != nil {
			return nil, err
		}
		m.RegisterGateway(g)
	}
	return m, nil
}

func (m *PaymentManager) RegisterGateway(gateway PaymentGateway) {
	m.gateways[gateway.Name()] = gateway
}

func (m *PaymentManager) Gateway(p Provider) (PaymentGateway, error) {
	gateway, ok := m.gateways[p]
	if !ok {
		return nil, fmt.Errorf("gateway not registered: %s: %w", p, ErrProviderNotConfigured)
	}
	return gateway, nil
}

// Enabled lists the registered providers in a stable order.
func (m *PaymentManager) Enabled() []Provider {
	out := make([]Provider, 0, len(m.gateways))
	for p := range m.gateways {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
