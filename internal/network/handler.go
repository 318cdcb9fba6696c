package network

// EventHandler is the seam between the transport and the game services.
// OnMessage runs on the client's read goroutine, so calls for different clients
// are concurrent and calls for one client are sequential.
type EventHandler interface {
	OnConnect(c *Client)
	OnDisconnect(c *Client)
	OnMessage(c *Client, msg Message)
}
