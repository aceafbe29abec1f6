package ingest

import "go.mongodb.org/mongo-driver/mongo/options"

// upsertOptions is the upsert-on-write policy the DeltaEngine uses for its
// durable per-courtCode CurrentCourt writes.
func upsertOptions() *options.UpdateOptions {
	upsert := true
	return &options.UpdateOptions{Upsert: &upsert}
}
