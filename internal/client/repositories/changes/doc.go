// Package changes persists the pending-change queue.
package changes
