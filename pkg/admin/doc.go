// Package admin provides the control-plane REST API of a running engine.
//
// Endpoints:
//
//	GET    /health                 - Health check
//	GET    /mappings               - List mappings (?origin=static|recorded)
//	POST   /mappings               - Register one mapping or a list (JSON or YAML)
//	GET    /mappings/{id}          - Get a mapping
//	DELETE /mappings/{id}          - Delete a mapping
//	DELETE /mappings?origin=recorded - Delete every recorded mapping
//	GET    /requests               - Query the exchange log
//	GET    /requests/stream        - Stream new exchanges (server-sent events)
//	GET    /requests/{id}          - Get one exchange
//	DELETE /requests               - Clear the exchange log
//	GET    /proxy                  - Current proxy configuration
//	PUT    /proxy                  - Replace the proxy configuration
//	DELETE /proxy                  - Disable proxying
//
// Mappings registered through this API are control-plane mappings: the
// recorder never overwrites, removes or shadows them.
//
// Example:
//
//	curl -X POST http://localhost:8081/mappings \
//	  -H "Content-Type: application/json" \
//	  -d '{"request": {"method": "GET", "path": "/hello"}, "response": {"status": 200, "body": "hi"}}'
package admin
