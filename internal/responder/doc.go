// Package responder persists the RDM responders found by discovery.
//
// Each responder is keyed by its UID and remembers which universe it was
// seen on, when it was first and last seen, and whether the controller has
// muted it during the current discovery pass. The bridge upserts a row for
// every branch hit and flips the muted flag as mute and unmute results
// arrive; the HTTP API lists the table.
package responder
