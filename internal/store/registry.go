// Package store provides persistence for the ledger and for the YAML
// registries that drive filtering and categorization.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fjacquet/mail-ledger/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Use the centralized logger from config package
var log = config.Logger

// SetLogger allows setting a custom logger
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// CategoryRule is a category with the keywords that select it.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// rulesFile is the on-disk shape of categories.yaml.
type rulesFile struct {
	Categories []CategoryRule `yaml:"categories"`
}

// Registry is the read/write surface over the YAML registries. The
// categorizer learns merchant mappings at runtime and writes them back
// through this interface.
type Registry interface {
	LoadCategoryRules() ([]CategoryRule, error)
	LoadMerchantMappings() (map[string]string, error)
	SaveMerchantMappings(mappings map[string]string) error
	LoadFinancialDomains() ([]string, error)
}

// RegistryStore manages loading and saving of registry data
type RegistryStore struct {
	CategoriesFile string
	MerchantsFile  string
	DomainsFile    string
}

// NewRegistryStore creates a new store for registry data
func NewRegistryStore(categoriesFile, merchantsFile, domainsFile string) *RegistryStore {
	return &RegistryStore{
		CategoriesFile: categoriesFile,
		MerchantsFile:  merchantsFile,
		DomainsFile:    domainsFile,
	}
}

// FindConfigFile looks for a configuration file in standard locations
func (s *RegistryStore) FindConfigFile(filename string) (string, error) {
	// Check if it's an absolute path
	if filepath.IsAbs(filename) {
		if _, err := os.Stat(filename); err == nil {
			return filename, nil
		}
		return "", os.ErrNotExist
	}

	// Common locations to check for config files
	locations := []string{
		filename,                            // Current directory
		filepath.Join("config", filename),   // ./config/ directory
		filepath.Join("database", filename), // ./database/ directory
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location, nil
		}
	}

	// If still not found, check in user's home directory under .config/mail-ledger/
	homeDir, err := os.UserHomeDir()
	if err == nil {
		configDir := filepath.Join(homeDir, ".config", "mail-ledger")
		configPath := filepath.Join(configDir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
	}

	return "", os.ErrNotExist
}

// resolveConfigFile gets the full path to a config file. Absolute paths
// go through the same existence check as searched ones, so a missing
// file always surfaces as os.ErrNotExist and the caller's empty-result
// fallback applies.
func (s *RegistryStore) resolveConfigFile(filename string) (string, error) {
	path, err := s.FindConfigFile(filename)
	if err != nil {
		log.Warnf("Configuration file not found: %s", filename)
		return "", err
	}

	return path, nil
}

// LoadCategoryRules loads category keyword rules from the YAML file
func (s *RegistryStore) LoadCategoryRules() ([]CategoryRule, error) {
	filename := s.CategoriesFile
	if filename == "" {
		filename = "categories.yaml"
	}

	filePath, err := s.resolveConfigFile(filename)
	if err != nil {
		// If file doesn't exist, return empty slice (not an error)
		if os.IsNotExist(err) {
			log.Warnf("Categories file not found: %s", filename)
			return []CategoryRule{}, nil
		}
		return nil, fmt.Errorf("error resolving categories file: %w", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading categories file: %w", err)
	}

	// Proper structure: "categories: [...]"
	var rules rulesFile
	err = yaml.Unmarshal(data, &rules)
	if err == nil && len(rules.Categories) > 0 {
		normalizeRules(rules.Categories)
		log.Debugf("Loaded %d category rules from %s", len(rules.Categories), filePath)
		return rules.Categories, nil
	}

	// Fallback: a direct array without the top-level key
	var categories []CategoryRule
	err = yaml.Unmarshal(data, &categories)
	if err == nil && len(categories) > 0 {
		normalizeRules(categories)
		log.Debugf("Loaded %d category rules from %s using direct array", len(categories), filePath)
		return categories, nil
	}

	if err != nil {
		return nil, fmt.Errorf("error parsing categories file: %w", err)
	}
	return []CategoryRule{}, nil
}

func normalizeRules(rules []CategoryRule) {
	for i := range rules {
		for j, kw := range rules[i].Keywords {
			rules[i].Keywords[j] = strings.ToLower(kw)
		}
	}
}

// LoadMerchantMappings loads merchant-to-category mappings from YAML
func (s *RegistryStore) LoadMerchantMappings() (map[string]string, error) {
	filename := s.MerchantsFile
	if filename == "" {
		filename = "merchants.yaml"
	}

	filePath, err := s.resolveConfigFile(filename)
	if err != nil {
		// If file doesn't exist, return empty map (not an error)
		if os.IsNotExist(err) {
			log.Warnf("Merchant mappings file not found: %s", filename)
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("error resolving merchant mappings file: %w", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading merchant mappings file: %w", err)
	}

	var mappings map[string]string
	if err := yaml.Unmarshal(data, &mappings); err != nil {
		return nil, fmt.Errorf("error parsing merchant mappings: %w", err)
	}

	log.Debugf("Loaded %d merchant mappings from %s", len(mappings), filePath)
	return mappings, nil
}

// SaveMerchantMappings saves merchant mappings to YAML. Called by the
// categorizer when auto-learn picks up a new merchant.
func (s *RegistryStore) SaveMerchantMappings(mappings map[string]string) error {
	filename := s.MerchantsFile
	if filename == "" {
		filename = "merchants.yaml"
	}

	// Find the existing file or use standard locations
	filePath, err := s.FindConfigFile(filename)
	if err != nil && err != os.ErrNotExist {
		return fmt.Errorf("error resolving merchant mappings file: %w", err)
	}

	// If file not found, use the database directory by default
	if err == os.ErrNotExist {
		if !filepath.IsAbs(filename) {
			filePath = filepath.Join("database", filename)
		} else {
			filePath = filename
		}
	}

	// Create parent directory if it doesn't exist
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	data, err := yaml.Marshal(mappings)
	if err != nil {
		return fmt.Errorf("error marshaling merchant mappings: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("error writing merchant mappings: %w", err)
	}

	log.Debugf("Saved %d merchant mappings to %s", len(mappings), filePath)
	return nil
}

// LoadFinancialDomains loads the list of sender domains known to send
// transactional mail. Used by the candidate filter as a strong signal.
func (s *RegistryStore) LoadFinancialDomains() ([]string, error) {
	filename := s.DomainsFile
	if filename == "" {
		filename = "domains.yaml"
	}

	filePath, err := s.resolveConfigFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("Financial domains file not found: %s", filename)
			return []string{}, nil
		}
		return nil, fmt.Errorf("error resolving financial domains file: %w", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading financial domains file: %w", err)
	}

	var domains []string
	if err := yaml.Unmarshal(data, &domains); err != nil {
		return nil, fmt.Errorf("error parsing financial domains: %w", err)
	}

	for i, d := range domains {
		domains[i] = strings.ToLower(strings.TrimSpace(d))
	}

	log.Debugf("Loaded %d financial domains from %s", len(domains), filePath)
	return domains, nil
}
