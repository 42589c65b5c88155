// Package header sets the response headers of the relay's streaming routes
// and carries the request id between client, relay and logs.
//
//	Client <--> Relay <--> Upstream model provider
//
// The relay does not forward client headers upstream; the upstream call is
// authenticated with the server's own credential.
package header

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/yurie-chat/yurie/pkg/sse"
)

// RequestIDHeader tags a request end to end. The relay echoes it, generating
// one when the client sent none.
const RequestIDHeader = "X-Request-Id"

// textStream are the headers of the plain-text playground stream.
var textStream = [][2]string{
	{"Content-Type", "text/plain; charset=utf-8"},
	{"Cache-Control", "no-cache"},
	{"X-Accel-Buffering", "no"},
}

// SetEventStream sets the text/event-stream response headers.
func SetEventStream(c *fiber.Ctx) {
	sse.SetHeaders(func(k, v string) { c.Set(k, v) })
}

// SetTextStream sets the plain-text streaming response headers.
func SetTextStream(c *fiber.Ctx) {
	for _, h := range textStream {
		c.Set(h[0], h[1])
	}
}

// RequestID returns the client's request id, or a new one. Either way the id
// is echoed on the response.
func RequestID(c *fiber.Ctx) string {
	id := c.Get(RequestIDHeader)
	if id == "" || len(id) > 128 {
		id = uuid.NewString()
	}
	c.Set(RequestIDHeader, id)
	return id
}
