package config

import (
	"maps"
	"net/http"
	"strings"
)

// SiteConfig holds site-specific configuration for a single host.
// This allows customizing requests and crawl behavior per site.
type SiteConfig struct {
	// Cookie is an HTTP cookie to use when mirroring this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global crawl depth for this site.
	// If zero, the global MaxDepth is used.
	Depth int `yaml:"depth,omitempty"`

	// IgnorePatterns are URL patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`

	// TagKinds overrides the resource kind created for a tag on this site.
	TagKinds map[string]string `yaml:"tagKinds,omitempty"`
}

// Header returns the request headers configured for the site, including
// the cookie. It returns nil when nothing is configured.
func (s SiteConfig) Header() http.Header {
	if s.Cookie == "" && len(s.Headers) == 0 {
		return nil
	}
	h := make(http.Header, len(s.Headers)+1)
	for k, v := range s.Headers {
		h.Set(k, v)
	}
	if s.Cookie != "" {
		h.Set("Cookie", s.Cookie)
	}
	return h
}

// File represents the structure of the .pagemirror configuration file.
type File struct {
	// Sites maps host names to their site-specific configurations.
	// Keys are host names without scheme or port (e.g., "example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a specific host.
// It merges the site-specific configuration with defaults. A leading
// "www." is ignored when the exact host has no entry.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)
	result.TagKinds = maps.Clone(cf.Defaults.TagKinds)

	host = strings.ToLower(host)
	siteConfig, ok := cf.Sites[host]
	if !ok {
		siteConfig, ok = cf.Sites[strings.TrimPrefix(host, "www.")]
	}
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Depth != 0 {
		result.Depth = siteConfig.Depth
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	if len(siteConfig.TagKinds) > 0 {
		if result.TagKinds == nil {
			result.TagKinds = make(map[string]string)
		}
		maps.Copy(result.TagKinds, siteConfig.TagKinds)
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}

	return result
}
