// Package service runs the matching engine: one goroutine owns every order
// book and applies commands in sequence order. Each mutating command is
// journaled before it is applied, and its outcome is handed to a second
// goroutine that stores it in the outbox for the publishers.
//
// It is decoupled from network transports like gRPC.
package service
