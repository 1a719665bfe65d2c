package payments

import "strings"

// SelectionInput carries the request fields that hint at a provider.
type SelectionInput struct {
	Provider    string
	Email       string
	ProductName string
	PayMethod   string
	Phone       string
	Country     string
	Network     string
	Description string
}

// NsanoNetworks is the fixed set of Ivory Coast operators Nsano debits from.
var NsanoNetworks = []string{"MTNCI", "VODAFONE", "AIRTEL", "GMONEY"}

type selectionRule struct {
	provider Provider
	match    func(in SelectionInput) bool
}

// Signals overlap between providers, so the order of this slice is the routing policy.
var selectionRules = []selectionRule{
	{
		provider: ProviderOPay,
		match: func(in SelectionInput) bool {
			return present(in.Email) ||
				present(in.ProductName) ||
				present(in.PayMethod) ||
				strings.Contains(in.Phone, dialNigeria) ||
				countryIs(in.Country, "NG")
		},
	},
	{
		provider: ProviderNsano,
		match: func(in SelectionInput) bool {
			return isNsanoNetwork(in.Network) ||
				strings.Contains(in.Phone, dialIvoryCoast) ||
				countryIs(in.Country, "CI")
		},
	},
	{
		provider: ProviderMpesa,
		match: func(in SelectionInput) bool {
			return present(in.Description) ||
				strings.Contains(in.Phone, dialKenya) ||
				countryIs(in.Country, "KE")
		},
	},
}

// SelectProvider returns the explicitly declared provider, or the first provider whose
// signals match. ProviderUndetermined means no rule matched.
func SelectProvider(in SelectionInput) Provider {
	if p := Provider(strings.ToLower(strings.TrimSpace(in.Provider))); p.Valid() {
		return p
	}
	for _, rule := range selectionRules {
		if rule.match(in) {
			return rule.provider
		}
	}
	return ProviderUndetermined
}

func isNsanoNetwork(network string) bool {
	network = strings.ToUpper(strings.TrimSpace(network))
	for _, n := range NsanoNetworks {
		if n == network {
			return true
		}
	}
	return false
}

func present(s string) bool { return strings.TrimSpace(s) != "" }

func countryIs(country, code string) bool {
	return strings.EqualFold(strings.TrimSpace(country), code)
}
