// Package guide defines the core data model for recorded guides.
//
// A Guide is a named, ordered collection of steps representing one recorded
// workflow. A RecordedStep is one captured interaction plus its screenshot
// and derived description. The guide's StepIDs slice is the canonical
// ordering; step Index fields mirror that order and must stay a contiguous
// permutation of 0..n-1 after any edit.
//
// The package also holds the normalized UserEvent payload emitted by page
// agents, the deterministic event-to-description derivation, and ID
// generation for guides and steps.
package guide
