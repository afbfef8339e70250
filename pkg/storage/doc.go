// Package storage opens the backing stores storygate depends on: the SQL
// database holding roles and users (PostgreSQL, or SQLite for development)
// and the Redis server holding sessions and rate limit counters. It also
// builds the S3 client used when role seeds live in object storage.
package storage
