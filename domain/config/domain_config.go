package config

import (
	"fmt"
	"time"
)

// DomainConfig holds the business limits shared by the entities and the
// request schemas
type DomainConfig struct {
	// Watchlist constraints
	MaxWatchlistNameLength        int
	MaxWatchlistDescriptionLength int
	MaxTermLength                 int
	DefaultWatchlistName          string

	// Event constraints
	MaxEventTitleLength       int
	MaxEventDescriptionLength int

	// Analysis
	FallbackNotice      string
	AnalysisPersistTime time.Duration
}

// FallbackNotice is appended to summaries produced by the fallback analyzer
// before they are stored
const FallbackNotice = " [Generated using fallback AI due to primary service unavailability or credits exhausted]"

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxWatchlistNameLength:        100,
		MaxWatchlistDescriptionLength: 500,
		MaxTermLength:                 50,
		DefaultWatchlistName:          "Default Watchlist",

		MaxEventTitleLength:       200,
		MaxEventDescriptionLength: 1000,

		FallbackNotice:      FallbackNotice,
		AnalysisPersistTime: 5 * time.Second,
	}
}

// LoadDomainConfig loads domain configuration based on environment. The
// limits are part of the public API contract, so every environment shares them.
func LoadDomainConfig(environment string) *DomainConfig {
	return DefaultDomainConfig()
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.MaxWatchlistNameLength <= 0 || c.MaxTermLength <= 0 || c.MaxEventTitleLength <= 0 {
		return fmt.Errorf("domain limits must be positive")
	}
	if c.AnalysisPersistTime <= 0 {
		return fmt.Errorf("analysis persist time must be positive")
	}
	return nil
}
