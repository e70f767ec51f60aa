// Package agent is the page-side capture agent: it mirrors recorder state
// from broadcasts, filters raw page interactions, and forwards normalized
// events to the recorder.
//
// One Agent exists per recording target. Agents share nothing with each
// other or with the recorder beyond the EventSink; coordination is
// message passing with no delivery guarantee.
package agent
