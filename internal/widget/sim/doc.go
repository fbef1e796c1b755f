// Package sim provides an in-memory DMX/RDM widget with virtual responders.
//
// It stands in for hardware during development and in tests. Frames written
// to it are recorded; RDM requests are answered by the responders it holds
// the way real fixtures would: discovery probes, mute and unmute, and a few
// common GET/SET parameters.
//
// A branch probe whose range holds several unmuted responders produces
// overlapping replies longer than one encoded UID, which the engine treats as
// a collision.
package sim
