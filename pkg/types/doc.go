/*
Package types provides the core interfaces and data structures shared by
the BucketFS engine, its store drivers, and the FUSE adapters.

# Architecture Overview

BucketFS layers a POSIX-like filesystem over a flat object store:

	┌─────────────────────────────────────────────┐
	│              FUSE Interface                 │
	│         (cmd/bucketfs, internal/fuse)       │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Filesystem Façade                 │
	│             (internal/fs)                   │
	└─────────────────────────────────────────────┘
	      │           │           │          │
	┌─────┴─────┐ ┌───┴────┐ ┌────┴─────┐ ┌──┴───────┐
	│ StatCache │ │ Reader │ │  Write   │ │  Store   │
	│  (trie)   │ │Pipeline│ │  Buffer  │ │ Drivers  │
	└───────────┘ └────────┘ └──────────┘ └──────────┘

# Core Interface

StoreClient abstracts the remote object store. Drivers exist for S3
(aws-sdk-go-v2), PostgreSQL, MongoDB, and an in-memory store used by
tests. Implementations must be safe for concurrent use and translate
driver-specific failures into the structured errors of pkg/errors so
the engine can distinguish "object missing" from "store unreachable".

# Data Structures

ObjectInfo carries the metadata the store exposes for one object.
ListResult is one prefix/delimiter listing: the objects directly under
the prefix plus the collapsed common prefixes that stand in for
subdirectories. Stat is the POSIX-style view the filesystem façade
synthesizes for the kernel.

All stat information is advisory: the store is the source of truth and
every cached value carries a TTL managed by the engine, not by this
package.
*/
package types
