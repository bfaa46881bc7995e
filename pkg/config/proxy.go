package config

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Defaults for proxy settings.
const (
	DefaultProxyTimeout    = 30 * time.Second
	DefaultMaxBodySize     = 10 * 1024 * 1024
	DefaultMappingPrefix   = "Proxy_Mapping_for_"
	DefaultMappingFileType = "json"
)

// ProxyConfig configures forwarding to an upstream and recording of the
// observed exchanges.
type ProxyConfig struct {
	// URL is the upstream base URL.
	URL string `json:"url" yaml:"url"`

	// SaveMapping registers synthesized mappings in memory.
	SaveMapping bool `json:"saveMapping,omitempty" yaml:"saveMapping,omitempty"`

	// SaveMappingToFile hands synthesized mappings to the file writer.
	SaveMappingToFile bool `json:"saveMappingToFile,omitempty" yaml:"saveMappingToFile,omitempty"`

	// ExcludedHeaders are never forwarded nor used as matchers (case-insensitive).
	ExcludedHeaders []string `json:"excludedHeaders,omitempty" yaml:"excludedHeaders,omitempty"`

	// ExcludedCookies are never forwarded nor used as matchers (case-insensitive).
	ExcludedCookies []string `json:"excludedCookies,omitempty" yaml:"excludedCookies,omitempty"`

	// ExcludedParams are forwarded but never used as query matchers.
	ExcludedParams []string `json:"excludedParams,omitempty" yaml:"excludedParams,omitempty"`

	// AllowPartialMapping marks synthesized matchers as partial.
	AllowPartialMapping bool `json:"allowPartialMapping,omitempty" yaml:"allowPartialMapping,omitempty"`

	// SaveMappingForStatusCodePattern limits recording to matching upstream
	// statuses: "*", "2xx", "200", "200-299" or a comma-separated list.
	SaveMappingForStatusCodePattern string `json:"saveMappingForStatusCodePattern,omitempty" yaml:"saveMappingForStatusCodePattern,omitempty"`

	// AppendIDToSavedMappingFile appends the mapping ID to file names.
	AppendIDToSavedMappingFile bool `json:"appendIdToSavedMappingFile,omitempty" yaml:"appendIdToSavedMappingFile,omitempty"`

	// PrefixForSavedMappingFile prefixes recorded mapping file names.
	PrefixForSavedMappingFile string `json:"prefixForSavedMappingFile,omitempty" yaml:"prefixForSavedMappingFile,omitempty"`

	// FileFormat is json or yaml.
	FileFormat string `json:"fileFormat,omitempty" yaml:"fileFormat,omitempty"`

	// Timeout bounds each upstream exchange.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// PreserveHost sends the inbound Host header upstream.
	PreserveHost bool `json:"preserveHost,omitempty" yaml:"preserveHost,omitempty"`

	// RewriteLocation rewrites absolute upstream-origin Location headers to
	// the mock server's origin. Nil means enabled.
	RewriteLocation *bool `json:"rewriteLocation,omitempty" yaml:"rewriteLocation,omitempty"`

	// MaxBodySize caps buffered request and response bodies.
	MaxBodySize int64 `json:"maxBodySize,omitempty" yaml:"maxBodySize,omitempty"`

	// Filter limits which proxied paths are recorded.
	Filter *RecordFilter `json:"filter,omitempty" yaml:"filter,omitempty"`
}

// RecordFilter defines include/exclude path globs for recording. Patterns
// use doublestar syntax ("/api/**", "/static/*.js").
type RecordFilter struct {
	IncludePaths []string `json:"includePaths,omitempty" yaml:"includePaths,omitempty"`
	ExcludePaths []string `json:"excludePaths,omitempty" yaml:"excludePaths,omitempty"`
}

// ShouldRecord determines if a path should be recorded.
// Precedence:
// 1. If matches ANY exclude pattern → NOT recorded
// 2. If include patterns exist AND matches NONE → NOT recorded
// 3. Otherwise → recorded
func (f *RecordFilter) ShouldRecord(path string) bool {
	if f == nil {
		return true
	}
	for _, pattern := range f.ExcludePaths {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return false
		}
	}
	if len(f.IncludePaths) == 0 {
		return true
	}
	for _, pattern := range f.IncludePaths {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

// RecordingEnabled reports whether exchanges should be turned into mappings.
func (p *ProxyConfig) RecordingEnabled() bool {
	return p != nil && (p.SaveMapping || p.SaveMappingToFile)
}

// HeaderExcluded reports whether name is in ExcludedHeaders.
func (p *ProxyConfig) HeaderExcluded(name string) bool {
	return p != nil && containsFold(p.ExcludedHeaders, name)
}

// CookieExcluded reports whether name is in ExcludedCookies.
func (p *ProxyConfig) CookieExcluded(name string) bool {
	return p != nil && containsFold(p.ExcludedCookies, name)
}

// ParamExcluded reports whether name is in ExcludedParams.
func (p *ProxyConfig) ParamExcluded(name string) bool {
	return p != nil && containsFold(p.ExcludedParams, name)
}

// ShouldRewriteLocation reports whether Location rewriting is on.
func (p *ProxyConfig) ShouldRewriteLocation() bool {
	return p == nil || p.RewriteLocation == nil || *p.RewriteLocation
}

// EffectiveTimeout returns Timeout or DefaultProxyTimeout.
func (p *ProxyConfig) EffectiveTimeout() time.Duration {
	if p == nil || p.Timeout <= 0 {
		return DefaultProxyTimeout
	}
	return p.Timeout
}

// EffectiveMaxBodySize returns MaxBodySize or DefaultMaxBodySize.
func (p *ProxyConfig) EffectiveMaxBodySize() int64 {
	if p == nil || p.MaxBodySize <= 0 {
		return DefaultMaxBodySize
	}
	return p.MaxBodySize
}

// MappingFilePrefix returns PrefixForSavedMappingFile or the default.
func (p *ProxyConfig) MappingFilePrefix() string {
	if p == nil || p.PrefixForSavedMappingFile == "" {
		return DefaultMappingPrefix
	}
	return p.PrefixForSavedMappingFile
}

// ShouldSaveStatus reports whether an upstream status passes
// SaveMappingForStatusCodePattern. An empty or invalid pattern matches all.
func (p *ProxyConfig) ShouldSaveStatus(status int) bool {
	if p == nil {
		return true
	}
	pattern := strings.TrimSpace(p.SaveMappingForStatusCodePattern)
	if pattern == "" || pattern == "*" {
		return true
	}
	for _, part := range strings.Split(pattern, ",") {
		if statusMatches(strings.TrimSpace(part), status) {
			return true
		}
	}
	return false
}

func statusMatches(part string, status int) bool {
	switch {
	case part == "*":
		return true
	case len(part) == 3 && strings.HasSuffix(strings.ToLower(part), "xx"):
		class, err := strconv.Atoi(part[:1])
		return err == nil && status/100 == class
	case strings.Contains(part, "-"):
		lo, hi, _ := strings.Cut(part, "-")
		l, err1 := strconv.Atoi(strings.TrimSpace(lo))
		h, err2 := strconv.Atoi(strings.TrimSpace(hi))
		return err1 == nil && err2 == nil && status >= l && status <= h
	default:
		n, err := strconv.Atoi(part)
		return err == nil && n == status
	}
}

// Clone returns a deep copy of p.
func (p *ProxyConfig) Clone() ProxyConfig {
	c := *p
	c.ExcludedHeaders = slices.Clone(p.ExcludedHeaders)
	c.ExcludedCookies = slices.Clone(p.ExcludedCookies)
	c.ExcludedParams = slices.Clone(p.ExcludedParams)
	if p.RewriteLocation != nil {
		v := *p.RewriteLocation
		c.RewriteLocation = &v
	}
	if p.Filter != nil {
		c.Filter = &RecordFilter{
			IncludePaths: slices.Clone(p.Filter.IncludePaths),
			ExcludePaths: slices.Clone(p.Filter.ExcludePaths),
		}
	}
	return c
}

// Validate checks the proxy settings.
func (p *ProxyConfig) Validate() error {
	if p == nil {
		return nil
	}
	u, err := url.Parse(p.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &Error{Field: "proxy.url", Message: fmt.Sprintf("invalid upstream URL %q", p.URL)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &Error{Field: "proxy.url", Message: "scheme must be http or https"}
	}
	switch strings.ToLower(p.FileFormat) {
	case "", "json", "yaml", "yml":
	default:
		return &Error{Field: "proxy.fileFormat", Message: fmt.Sprintf("unsupported format %q (json, yaml)", p.FileFormat)}
	}
	if p.Filter != nil {
		for _, pattern := range append(slices.Clone(p.Filter.IncludePaths), p.Filter.ExcludePaths...) {
			if !doublestar.ValidatePattern(pattern) {
				return &Error{Field: "proxy.filter", Message: fmt.Sprintf("invalid path pattern %q", pattern)}
			}
		}
	}
	if p.Timeout < 0 {
		return &Error{Field: "proxy.timeout", Message: "timeout must not be negative"}
	}
	return nil
}

func containsFold(list []string, name string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), name) {
			return true
		}
	}
	return false
}
