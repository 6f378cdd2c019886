// Package model defines the provider-agnostic abstraction for the language
// models the audit agents call for semantic analysis.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Keep prompt/completion shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so agents remain decoupled from vendor SDKs. Model use is always
// optional: every agent has a heuristic fallback for when no model is wired
// or a call fails.
package model
