/*
Package cache provides the in-memory metadata and content caches that sit
between the filesystem layer and the object store.

Both caches exist for the same reason: a flat object store answers every
question with a network round trip, and a filesystem asks the same
questions constantly. Caching stat results and object content locally
turns most lookups into map or trie walks.

# Stat Cache

The stat cache is a trie keyed by path component. Each node carries the
metadata for one path (size, mtime, directory flag) plus an existence
flag, so a single structure answers "does /a/b exist", "is it a
directory", and "what are the children of /a" without touching the
store.

	            root ("/")
	           /          \
	       photos        notes.txt
	      /      \
	   2024      index.txt
	    |
	  img.jpg

Entries expire lazily: each carries the time it was cached, and a lookup
past the TTL reports a miss while leaving the node in place to be
overwritten by the next insert. A TTL of zero or less disables expiry.
Inserting a file creates every missing ancestor as a directory entry, so
the trie is always path-complete. Removing a path marks its node
non-existent and prunes childless non-existent nodes bottom-up toward
the root.

# Content Cache

The content cache is an LRU over whole objects: key to full byte buffer.
The reader pipeline populates it on first read and serves later reads by
slicing; writes and deletes invalidate the entry. Capacity is bounded by
total bytes, with least-recently-used eviction.

Neither cache persists anything. Both are rebuilt from the store on the
next mount.
*/
package cache
