// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services depend only on domain, ports and a small set of concurrency
// and retry libraries. They never import adapters.
package services
