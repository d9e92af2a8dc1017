// Package server runs the local HTTP endpoint that completes the OAuth authorization code flow.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Logging] and [Recover] are the middleware used by the CLI.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /callback"), so requests with
// another method receive 405 from the mux itself.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter (CSRF protection), exchanges the authorization code for a
// credential through an [auth.Exchanger] and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// # Callback Server
//
// [CallbackServer] binds the listener synchronously so a port conflict is reported before the browser opens,
// serves in the background and shuts down once [WaitForCallback] has its result.
package server
