// Package ws pushes bundle reload notifications to renderers over WebSocket.
//
// Renderers connect to the hub and receive a "reload" event whenever the
// host switches content roots, so they can navigate to the newly active
// bundle without polling.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Connection established
//   - reload: Active content root changed
//   - pong: Reply to ping
//   - error: Malformed or unknown message
//
// Example Usage:
//
//	hub := ws.NewHub(logger).WithMetrics(metrics)
//	router.GET("/ws", hub.HandleConnection)
//	hub.Broadcast(ws.Event{Type: ws.EventReload, Version: "1.2.0"})
package ws
