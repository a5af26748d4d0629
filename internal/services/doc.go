// Package services defines the shared error taxonomy and context plumbing
// used across pipeline stages.
//
// Every failure surfaced by a stage is wrapped with one of the exported
// sentinel markers so callers can classify outcomes without inspecting
// message text, and annotated with stage/operation context for the run
// summary's error table.
package services
