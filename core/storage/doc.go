// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind a small Client interface used to write and
// read back link snapshots (exports/<guild>/links-<unix>.json) on AWS S3 or a
// self-hosted MinIO instance. Mocks for tests live in core/storage/mocks.
//
// # Usage
//
//	client, err := storage.NewClient(config)
//	err = storage.EnsureBucket(ctx, client, config.Bucket)
//	err = storage.PutJSON(ctx, client, config.Bucket, "exports/1/links-1700000000.json", data)
//	objs, err := storage.List(ctx, client, config.Bucket, "exports/1/")
//	err = storage.GetJSON(ctx, client, config.Bucket, objs[0].Key, &snapshot)
package storage
