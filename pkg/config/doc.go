// Package config provides configuration types and loading for mockrelay.
//
// ServerConfig is read from a YAML file (gopkg.in/yaml.v3). ProxyConfig
// carries the proxy-and-record settings consumed by the engine. Static
// mappings are loaded from a directory tree with doublestar globbing and are
// registered as control-plane mappings.
package config
