// Package api holds the docscan HTTP API's request/response wire
// types and its OpenAPI/Swagger documentation.
//
// # API Overview
//
// docscan exposes a RESTful API for:
//   - Google/Telegram identity verification and session logout
//   - Profile reads and the three-slot LLM API-key surface
//   - Document upload and structured multi-section analysis
//   - Letter template browsing, drafting, saving and PDF export
//   - Health, OCR status and LLM provider status checks
//
// # Authentication
//
// Authenticated endpoints require the session bearer token minted by
// the auth verify endpoints:
//
//	Authorization: Bearer <session-token>
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// # OpenAPI Specification
//
// The OpenAPI 3.0 specification is available at:
//   - api/openapi.yaml (static file)
//   - /swagger/doc.json (when swag is used)
//
// # Generating Documentation
//
// To regenerate Swagger documentation using swag:
//
//	make docs-swagger
//
// Or manually:
//
//	swag init -g cmd/docscan/main.go -o api --parseDependency --parseInternal
//
// # Viewing Documentation
//
// To view the API documentation in Swagger UI:
//
//	make docs-serve
//
// This will start a Swagger UI server at http://localhost:8081
package api
