// Package cli implements the mockrelay command line.
//
// The default command is serve, which starts the mock listener and, unless
// disabled, the admin API:
//
//	mockrelay serve --port 8080 --proxy-url https://api.example.com --save-mapping
//
// Flags override values from the --config file.
package cli
