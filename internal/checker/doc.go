// Package checker holds the domain evaluators of seca-guard.
//
// Architecture overview:
//
//   - Each evaluator is a pure function over already-collected evidence:
//     EvaluateProxy (parsed proxy descriptors), EvaluateNetworkPosture
//     (FetchedMeta from a Fetcher), EvaluateWifi (a WifiNetworkSnapshot),
//     AnalyzeText (a free-text message) and EvaluateURL (the URL string).
//     Every one of them produces an evidence.RiskReport; none builds a verdict.
//   - Evaluator adapts these functions to a common (ctx, input) shape so the
//     scan orchestrator and the batch Runner can treat every domain uniformly.
//     Failures are wrapped in EvaluationError; evaluators implementing FailOpen
//     (network fetch) degrade to a partial report instead.
//   - Runner coordinates batch execution with a semaphore and a global rate
//     limiter, keeping results in input order.
//
// Scores are additive: each rule contributes a fixed delta and the sum is
// clamped to [0,1], so adding a finding never lowers a score.
package checker
