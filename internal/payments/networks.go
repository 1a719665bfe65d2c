package payments

// Network is one payable channel of a provider: a mobile operator or a pay method.
type Network struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Country     string `json:"country"`
	Description string `json:"description"`
}

// Market groups the channels a single provider offers in one country.
type Market struct {
	Provider       Provider  `json:"provider"`
	Currency       string    `json:"currency"`
	CountryCode    string    `json:"country_code"`
	Networks       []Network `json:"networks,omitempty"`
	PaymentMethods []Network `json:"payment_methods,omitempty"`
}

var catalogue = map[Provider]struct {
	key    string
	market Market
}{
	ProviderNsano: {"ivory_coast", Market{
		Provider:    ProviderNsano,
		Currency:    "XOF",
		CountryCode: "CI",
		Networks: []Network{
			{"MTNCI", "MTN Côte d'Ivoire", "CI", "MTN Mobile Money Côte d'Ivoire"},
			{"VODAFONE", "Vodafone Côte d'Ivoire", "CI", "Vodafone Cash Côte d'Ivoire"},
			{"AIRTEL", "Airtel Côte d'Ivoire", "CI", "Airtel Money Côte d'Ivoire"},
			{"GMONEY", "Green Money", "CI", "Green Money Mobile Payment"},
		},
	}},
	ProviderOPay: {"nigeria", Market{
		Provider:    ProviderOPay,
		Currency:    "NGN",
		CountryCode: "NG",
		PaymentMethods: []Network{
			{"BankCard", "Bank Cards (Visa, MasterCard, Verve)", "NG", "Credit and Debit card payments"},
			{"BankAccount", "Bank Account Direct Debit", "NG", "Direct debit from Nigerian bank accounts"},
			{"BankTransfer", "Bank Transfer", "NG", "Bank-to-bank transfer payments"},
			{"USSD", "USSD Payment", "NG", "USSD code-based mobile payments"},
			{"OWealth", "OPay Wallet", "NG", "OPay digital wallet payments"},
			{"QR", "QR Code Payment", "NG", "QR code scan-to-pay method"},
		},
	}},
	ProviderMpesa: {"kenya", Market{
		Provider:    ProviderMpesa,
		Currency:    "KES",
		CountryCode: "KE",
		Networks: []Network{
			{"MPESA", "M-Pesa", "KE", "Safaricom M-Pesa STK push"},
		},
	}},
}

// AvailableNetworks returns the catalogue keyed by market name, limited to the given
// providers.
func AvailableNetworks(enabled []Provider) map[string]Market {
	out := make(map[string]Market, len(enabled))
	for _, p := range enabled {
		if entry, ok := catalogue[p]; ok {
			out[entry.key] = entry.market
		}
	}
	return out
}
