// Package app assembles the bot runtime from configuration.
//
// New opens the store, builds the catalog providers, the renderer and the
// turn engine, and prepares the ops HTTP server. Run connects the enabled
// chat frontends, serves /health, /health/ready and metrics, and shuts
// everything down when its context is cancelled.
package app
