// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers implements docscan's HTTP request handlers.

# Overview

handlers wires every docscan HTTP endpoint — identity verification,
profile/API-key management, document analysis, letter drafting, and
service health/status — onto the shared response/error envelope.
Every Handler follows the standard net/http interface.

# Core types

  - AuthHandler      — Google/Telegram credential verification, session minting, logout
  - ProfileHandler   — profile reads and the three-slot API-key surface
  - AnalyzeHandler   — multipart upload intake for the analysis pipeline
  - LettersHandler   — template catalog browsing and letter drafting/saving
  - StatusHandler    — docscan-domain health (database/OCR/LLM status)
  - HealthHandler    — generic liveness/readiness probes (/health, /healthz, /ready)
  - Response         — the shared JSON envelope (success + data + error + timestamp)
  - ErrorInfo        — structured error info with code, message, retryable flag
  - ResponseWriter   — wraps http.ResponseWriter to capture the status code
  - HealthCheck      — pluggable health check interface (database, Redis, ...)

# Key behaviors

  - WriteSuccess / WriteError / WriteJSON render the shared envelope
  - DecodeJSONBody enforces a 1 MB body limit and rejects unknown fields
  - ErrorCode maps to an HTTP status automatically (4xx/5xx)
  - RegisterCheck lets callers plug in custom HealthCheck implementations
*/
package handlers
