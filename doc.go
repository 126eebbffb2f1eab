// Package cookiebroom deletes cookies from local browser profiles (Chrome-family, Firefox)
// without ever leaving a store worse off than it found it.
//
// Every deletion goes through a plan that is validated against a whitelist, gated on running
// browser processes and file locks, preceded by a timestamped backup, and executed inside an
// immediate-mode transaction that rolls back and restores on any failure. This is local
// tooling: it reads and mutates browser profile state on the machine it runs on and should
// not be used in server contexts.
package cookiebroom
