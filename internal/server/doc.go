// Package server hosts the Fiber HTTP service: the middleware chain, the
// access gate, the installed route table, diagnostics and the terminal
// not-found and error handlers. Bootstrap wires configuration into an
// explicit routemodule.ModuleContext once at startup and loads route
// modules before the listener accepts connections; keep exports narrow and
// accept explicit dependencies.
package server
