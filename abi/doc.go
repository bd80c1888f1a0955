// Package abi defines the wire vocabulary of the Component Model async
// protocol as seen from the guest.
//
// Events arrive as three u32 words: an EventCode, the waitable the event
// names (or 0), and an auxiliary payload. Async-lowered imports return a
// packed word with a CallStatus in the low four bits and a subtask handle in
// the rest. FirstPoll and Callback return a CallbackCode, where WAIT carries
// the waitable set in the same packed form. Stream and future transfers
// report a Result, which is either a sentinel (Blocked, Closed, Canceled)
// or an element count.
//
// The package also carries the small alignment helpers shared by layout
// and stream code.
package abi
