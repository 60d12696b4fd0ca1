package sharding

import (
	"fmt"
	"testing"
)

func TestShardID(t *testing.T) {
	tests := []struct {
		entityID string
		want     int
	}{
		{"user-1", 20}, // crc32.ChecksumIEEE mod ShardCount
		{"task-abc", 82},
		{"label-7", 168},
	}

	for _, tt := range tests {
		t.Run(tt.entityID, func(t *testing.T) {
			if got := ShardID(tt.entityID); got != tt.want {
				t.Errorf("ShardID(%q) = %v, want %v", tt.entityID, got, tt.want)
			}
		})
	}
}

func TestSubjects(t *testing.T) {
	if got := CommandSubject(EntityTask, "task-abc"); got != "app.command.82.task.task-abc" {
		t.Errorf("CommandSubject = %v", got)
	}
	if got := EventSubject(EntityLabel, "label-7"); got != "app.event.168.label.label-7" {
		t.Errorf("EventSubject = %v", got)
	}
	if got := RejectionSubject("cmd-1"); got != "app.rejection.cmd-1" {
		t.Errorf("RejectionSubject = %v", got)
	}
}

func TestStableSharding(t *testing.T) {
	// Ensure that the sharding is deterministic and stable
	id := "test-stable-id"
	shard1 := ShardID(id)
	shard2 := ShardID(id)

	if shard1 != shard2 {
		t.Errorf("Sharding is not deterministic! %d != %d", shard1, shard2)
	}
}

func TestDistribution(t *testing.T) {
	// Rough check to ensure we don't map everything to shard 0
	distribution := make(map[int]int)
	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("key-%d", i)
		shard := ShardID(key)
		distribution[shard]++
	}

	if len(distribution) < 100 {
		t.Errorf("Sharding distribution is too poor. Only %d unique shards used for 1000 keys", len(distribution))
	}
}
