// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types holds the shared types docscan's other packages build on.

# Overview

types is the lowest-level shared package: it depends on nothing else
in the module, so ocr, llm, store, pipeline, analysis, letters and the
api layer all import it without risking an import cycle. The chat
message shape exchanged with LLM providers and the structured error
taxonomy returned by every HTTP handler both live here.

# Core types

  - Message / Role / ToolCall / ImageContent — the provider-agnostic
    chat turn shape the Router and the three provider packages share
  - Error / ErrorCode — structured error with an HTTP status, a
    Retryable flag, and an optional Provider tag, wrapping a Cause
    via the standard errors.Unwrap chain

# Key behaviors

  - NewError / WithCause / WithHTTPStatus / WithRetryable / WithProvider
    build an *Error fluently at the point it's raised
  - IsRetryable / GetErrorCode classify an arbitrary error without a
    type assertion at every call site
  - NewMessage / NewSystemMessage / NewUserMessage / NewAssistantMessage /
    NewToolMessage construct a Message for each chat role
*/
package types
