/*
Package functions is the function directory: persistent storage and lookup
of registered function sources.

Functions are addressed by (namespace, name). The pool only dispatches
functions that are both active and flagged shared_pool; Resolve enforces
that check so callers cannot accidentally bypass it. Storage is a local
BoltDB file, one bucket, JSON values.
*/
package functions
