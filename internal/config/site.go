package config

// SiteConfig holds site-specific configuration for a single authority.
// This allows customizing crawl behavior per root.
type SiteConfig struct {
	// IgnorePatterns are URL patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`

	// MaxRequests overrides the global request limit for this site.
	// If zero, the global limit is used.
	MaxRequests int `yaml:"maxRequests,omitempty"`
}

// File represents the structure of the .spider configuration file.
type File struct {
	// Sites maps authorities to their site-specific configurations.
	// Keys are "host" or "host:port" without a scheme (e.g., "example.com:8080").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a specific authority.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(authority string) SiteConfig {
	result := cf.Defaults

	if siteConfig, ok := cf.Sites[authority]; ok {
		if siteConfig.MaxRequests != 0 {
			result.MaxRequests = siteConfig.MaxRequests
		}
		if len(siteConfig.IgnorePatterns) > 0 {
			result.IgnorePatterns = siteConfig.IgnorePatterns
		}
		if len(siteConfig.FollowPatterns) > 0 {
			result.FollowPatterns = siteConfig.FollowPatterns
		}
	}

	return result
}
