package store

// MockRegistry is a mock implementation of Registry for testing.
type MockRegistry struct {
	Rules            []CategoryRule
	MerchantMappings map[string]string
	FinancialDomains []string

	// Error flags for testing error conditions
	LoadCategoryRulesError    error
	LoadMerchantMappingsError error
	SaveMerchantMappingsError error
	LoadFinancialDomainsError error
}

// LoadCategoryRules returns the mock category rules.
func (m *MockRegistry) LoadCategoryRules() ([]CategoryRule, error) {
	if m.LoadCategoryRulesError != nil {
		return nil, m.LoadCategoryRulesError
	}
	return m.Rules, nil
}

// LoadMerchantMappings returns the mock merchant mappings.
func (m *MockRegistry) LoadMerchantMappings() (map[string]string, error) {
	if m.LoadMerchantMappingsError != nil {
		return nil, m.LoadMerchantMappingsError
	}
	if m.MerchantMappings == nil {
		return make(map[string]string), nil
	}
	// Return a copy to avoid external modifications
	result := make(map[string]string)
	for k, v := range m.MerchantMappings {
		result[k] = v
	}
	return result, nil
}

// SaveMerchantMappings updates the mock merchant mappings.
func (m *MockRegistry) SaveMerchantMappings(mappings map[string]string) error {
	if m.SaveMerchantMappingsError != nil {
		return m.SaveMerchantMappingsError
	}
	if m.MerchantMappings == nil {
		m.MerchantMappings = make(map[string]string)
	}
	for k, v := range mappings {
		m.MerchantMappings[k] = v
	}
	return nil
}

// LoadFinancialDomains returns the mock financial domains.
func (m *MockRegistry) LoadFinancialDomains() ([]string, error) {
	if m.LoadFinancialDomainsError != nil {
		return nil, m.LoadFinancialDomainsError
	}
	return m.FinancialDomains, nil
}
