package postgres

// GetMigrations returns the ordered schema migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_follow_edges",
			UpSQL: `
				CREATE TABLE follow_edges (
					id UUID PRIMARY KEY,
					follower_id UUID NOT NULL,
					following_id UUID NOT NULL,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL,
					in_phlock BOOLEAN NOT NULL DEFAULT FALSE,
					phlock_position SMALLINT,
					phlock_added_at TIMESTAMP WITH TIME ZONE,

					CONSTRAINT uq_follow_edges_pair UNIQUE (follower_id, following_id),
					CONSTRAINT ck_follow_edges_no_self CHECK (follower_id <> following_id),
					CONSTRAINT ck_follow_edges_position_range CHECK (
						phlock_position IS NULL OR (phlock_position >= 1 AND phlock_position <= 5)
					),
					CONSTRAINT ck_follow_edges_phlock_state CHECK (
						(in_phlock AND phlock_position IS NOT NULL AND phlock_added_at IS NOT NULL)
						OR (NOT in_phlock AND phlock_position IS NULL AND phlock_added_at IS NULL)
					)
				);

				CREATE INDEX idx_follow_edges_follower ON follow_edges (follower_id, created_at DESC);
				CREATE INDEX idx_follow_edges_following ON follow_edges (following_id, created_at DESC);
				CREATE INDEX idx_follow_edges_phlock ON follow_edges (following_id, phlock_position)
					WHERE in_phlock;
			`,
			DownSQL: `DROP TABLE IF EXISTS follow_edges;`,
		},
		{
			Version: 2,
			Name:    "create_follow_requests",
			UpSQL: `
				CREATE TABLE follow_requests (
					id UUID PRIMARY KEY,
					requester_id UUID NOT NULL,
					target_id UUID NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending',
					created_at TIMESTAMP WITH TIME ZONE NOT NULL,
					resolved_at TIMESTAMP WITH TIME ZONE,

					CONSTRAINT ck_follow_requests_no_self CHECK (requester_id <> target_id),
					CONSTRAINT ck_follow_requests_status CHECK (
						status IN ('pending', 'accepted', 'rejected', 'cancelled')
					)
				);

				CREATE UNIQUE INDEX uq_follow_requests_pending_pair
					ON follow_requests (requester_id, target_id)
					WHERE status = 'pending';
				CREATE INDEX idx_follow_requests_target
					ON follow_requests (target_id, created_at DESC)
					WHERE status = 'pending';
			`,
			DownSQL: `DROP TABLE IF EXISTS follow_requests;`,
		},
		{
			Version: 3,
			Name:    "create_scheduled_swaps",
			UpSQL: `
				CREATE TABLE scheduled_swaps (
					id UUID PRIMARY KEY,
					owner_id UUID NOT NULL,
					old_member_id UUID NOT NULL,
					new_member_id UUID,
					status TEXT NOT NULL DEFAULT 'pending',
					scheduled_for TIMESTAMP WITH TIME ZONE NOT NULL,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL,
					resolved_at TIMESTAMP WITH TIME ZONE,

					CONSTRAINT ck_scheduled_swaps_status CHECK (
						status IN ('pending', 'applied', 'cancelled')
					)
				);

				CREATE INDEX idx_scheduled_swaps_due
					ON scheduled_swaps (scheduled_for)
					WHERE status = 'pending';
				CREATE INDEX idx_scheduled_swaps_owner
					ON scheduled_swaps (owner_id, created_at DESC);
			`,
			DownSQL: `DROP TABLE IF EXISTS scheduled_swaps;`,
		},
		{
			Version: 4,
			Name:    "create_phlock_history",
			UpSQL: `
				CREATE TABLE phlock_history (
					id UUID PRIMARY KEY,
					owner_id UUID NOT NULL,
					member_id UUID NOT NULL,
					added_at TIMESTAMP WITH TIME ZONE NOT NULL,
					removed_at TIMESTAMP WITH TIME ZONE,

					CONSTRAINT ck_phlock_history_span CHECK (
						removed_at IS NULL OR removed_at >= added_at
					)
				);

				CREATE INDEX idx_phlock_history_owner ON phlock_history (owner_id, added_at DESC);
				CREATE UNIQUE INDEX uq_phlock_history_open_span
					ON phlock_history (owner_id, member_id)
					WHERE removed_at IS NULL;
				CREATE INDEX idx_phlock_history_member ON phlock_history (member_id);
			`,
			DownSQL: `DROP TABLE IF EXISTS phlock_history;`,
		},
	}
}
