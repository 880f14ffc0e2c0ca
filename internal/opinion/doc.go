// Package opinion defines the shared data model for the opinion graph:
// raw working records produced by extraction, finalized Opinion entities,
// typed relationships between opinions, evolution chains, speaker journeys,
// and the audit records emitted while merging.
package opinion
