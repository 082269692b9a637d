package main

import (
	"net/http"
	"time"
)

const timeoutBody = `<!doctype html>
<html lang="es">
<head><title>Tiempo agotado</title></head>
<body>
<h1>El servidor tardó demasiado en responder</h1>
<p><a href="">Reintentar</a></p>
</body>
</html>
`

// timeoutHandler responds with 503 Service Unavailable when the handler does not meet the deadline.
func timeoutHandler(h http.Handler, defaultTimeout time.Duration) http.Handler {
	// Respond a little before the server's write timeout closes the connection.
	httpHandlerTimeout := defaultTimeout - 500*time.Millisecond //nolint:mnd // 500ms
	return http.TimeoutHandler(h, httpHandlerTimeout, timeoutBody)
}
