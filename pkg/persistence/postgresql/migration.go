package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create automations table
			CREATE TABLE automations (
				id VARCHAR(255) PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				enabled BOOLEAN NOT NULL DEFAULT false,
				trigger_type VARCHAR(50) NOT NULL,
				trigger_config JSONB DEFAULT '{}',
				nodes JSONB DEFAULT '[]',
				edges JSONB DEFAULT '[]',
				execution_count BIGINT NOT NULL DEFAULT 0,
				last_executed_at TIMESTAMP WITH TIME ZONE,
				last_error TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_automations_tenant_id ON automations(tenant_id);
			CREATE INDEX idx_automations_trigger_type ON automations(trigger_type);
			CREATE INDEX idx_automations_enabled ON automations(enabled);
			CREATE INDEX idx_automations_deleted_at ON automations(deleted_at);
		`,
		2: `
			-- Create runs table
			CREATE TABLE runs (
				id VARCHAR(255) PRIMARY KEY,
				automation_id VARCHAR(255) NOT NULL,
				tenant_id VARCHAR(255) NOT NULL,
				mode VARCHAR(10) NOT NULL CHECK (mode IN ('live', 'test')),
				status VARCHAR(20) NOT NULL CHECK (status IN ('running', 'succeeded', 'failed', 'cancelled')),
				trigger_payload JSONB DEFAULT '{}',
				error_message TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_runs_automation_id ON runs(automation_id);
			CREATE INDEX idx_runs_tenant_id ON runs(tenant_id);
			CREATE INDEX idx_runs_status ON runs(status);
			CREATE INDEX idx_runs_started_at ON runs(started_at);

			-- Create run_steps table (append-only step history)
			CREATE TABLE run_steps (
				run_id VARCHAR(255) NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				position INT NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				node_type VARCHAR(255) NOT NULL,
				input JSONB DEFAULT '{}',
				output JSONB DEFAULT '{}',
				outcome VARCHAR(20) NOT NULL CHECK (outcome IN ('success', 'failure', 'skipped')),
				error_message TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				duration_ms BIGINT NOT NULL DEFAULT 0,
				PRIMARY KEY (run_id, position)
			);

			CREATE INDEX idx_run_steps_run_id ON run_steps(run_id);
			CREATE INDEX idx_run_steps_node_id ON run_steps(node_id);
		`,
	}
}
