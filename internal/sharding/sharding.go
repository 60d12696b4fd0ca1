// Package sharding derives deterministic NATS subjects from entity ids.
// All commands and events for one entity land on the same shard, which is
// how the single-writer-per-id discipline is enforced on the wire.
package sharding

import (
	"fmt"
	"hash/crc32"
)

// ShardCount is the fixed number of partitions for the system.
const ShardCount = 256

// EntityTask and EntityLabel are the aggregate kinds carried in subjects.
const (
	EntityTask  = "task"
	EntityLabel = "label"
)

// ShardID calculates the deterministic shard for a given entity ID.
func ShardID(entityID string) int {
	checksum := crc32.ChecksumIEEE([]byte(entityID))
	return int(checksum % ShardCount)
}

// CommandSubject returns the subject a command for the entity is published
// on. Format: app.command.{shard_id}.{entity_kind}.{entity_id}
func CommandSubject(entityKind, entityID string) string {
	return fmt.Sprintf("app.command.%d.%s.%s", ShardID(entityID), entityKind, entityID)
}

// EventSubject returns the subject events for the entity are published on.
func EventSubject(entityKind, entityID string) string {
	return fmt.Sprintf("app.event.%d.%s.%s", ShardID(entityID), entityKind, entityID)
}

// RejectionSubject returns the subject rejections for a command are
// published on, keyed by the command id so callers can await the outcome.
func RejectionSubject(commandID string) string {
	return fmt.Sprintf("app.rejection.%s", commandID)
}
