// Package agent contains the concrete audit agents and their shared
// plumbing. The package covers three concerns:
//
//  1. Base identity + infrastructure wiring (BaseAgent)
//  2. Specialist agents (RiskScanner, PolicyMatcher, ReportWriter, Critic)
//  3. Supervision (Watchdog) and orchestration (Coordinator)
//
// Design principles:
//   - No hidden global state: bus, queue and state store are injected
//   - Every agent satisfies core.Agent and is driven purely through Process
//   - Degradation over failure: model- and cache-backed paths fall back to
//     heuristics when their backend is missing or errors
//
// Agents communicate through the message bus and report results to the
// coordinator, which composes them into workflows via the workflow package.
package agent
