// Package events provides an in-process publish/subscribe broker for pool
// lifecycle and execution events.
package events
