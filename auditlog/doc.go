// Package auditlog persists audit events in a bbolt database so the trail survives
// restarts and can be read back by the admin tool.
//
// Events are CBOR-encoded and keyed by a UUIDv7, which keeps the bucket in emission order.
package auditlog
