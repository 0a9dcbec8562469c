// Package host implements the host collaborator of the update manager.
//
// The Bridge stores the active content root in a TOML prefs file so a
// restarted host keeps serving the same bundle, and broadcasts reload events
// through the WebSocket hub.
package host
