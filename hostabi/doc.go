// Package hostabi serves the async built-ins to wasm guests running under
// wazero.
//
// The built-ins are exported from a host module named $root with the link
// names the guest side imports, so a guest built for wasip1 with the
// canon.Guest host runs against any canon.Host implementation, usually a
// loopback.Host.
package hostabi
