// Package scoring turns per-domain risk reports into a single verdict.
package scoring
