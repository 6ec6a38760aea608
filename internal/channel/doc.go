// ABOUTME: Playable channel package
// ABOUTME: Streaming and event-driven channels sharing one transport interface
// Package channel implements the playable units the player drives.
//
// A StreamChannel plays one continuous track through the stretch
// processor. An EventChannel fires one-shot samples at timeline offsets.
// Both attach to the mixer while playing and detach when paused or
// stopped, and both deliver a notification on Finished when they reach
// their natural end.
package channel
