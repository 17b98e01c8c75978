package postgres

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE messages (
				id UUID PRIMARY KEY,
				business_id VARCHAR(255) NOT NULL,
				phone_number VARCHAR(32),
				email VARCHAR(255),
				body TEXT NOT NULL DEFAULT '',
				conversation_id UUID,
				is_first_in_conversation BOOLEAN NOT NULL DEFAULT false,
				response_to_message_id UUID REFERENCES messages(id),
				is_opted_out BOOLEAN NOT NULL DEFAULT false,
				opted_out_at TIMESTAMP WITH TIME ZONE,
				retry_attempt INT NOT NULL DEFAULT 0,
				provider_message_id VARCHAR(255),
				received_at TIMESTAMP WITH TIME ZONE NOT NULL,
				metadata JSONB
			);

			CREATE INDEX idx_messages_contact ON messages(business_id, phone_number, received_at DESC);
			CREATE INDEX idx_messages_conversation ON messages(conversation_id);

			CREATE TABLE opt_outs (
				phone_number VARCHAR(32) NOT NULL,
				business_id VARCHAR(255) NOT NULL,
				opted_out_at TIMESTAMP WITH TIME ZONE NOT NULL,
				reason VARCHAR(255),
				PRIMARY KEY (phone_number, business_id)
			);

			CREATE TABLE consents (
				phone_number VARCHAR(32) NOT NULL,
				business_id VARCHAR(255) NOT NULL,
				opted_in_at TIMESTAMP WITH TIME ZONE NOT NULL,
				source VARCHAR(255),
				PRIMARY KEY (phone_number, business_id)
			);

			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				business_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				type VARCHAR(16) NOT NULL CHECK (type IN ('sms', 'email', 'voice')),
				status VARCHAR(16) NOT NULL CHECK (status IN ('draft', 'active', 'archived')),
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				config JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_business ON workflows(business_id, type, status);

			CREATE TABLE workflow_executions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL,
				business_id VARCHAR(255) NOT NULL,
				status VARCHAR(16) NOT NULL,
				start_time TIMESTAMP WITH TIME ZONE NOT NULL,
				end_time TIMESTAMP WITH TIME ZONE,
				input_data JSONB,
				variables JSONB,
				node_executions JSONB,
				error_message TEXT
			);

			CREATE INDEX idx_executions_workflow ON workflow_executions(workflow_id, start_time DESC);
			CREATE INDEX idx_executions_status ON workflow_executions(status);
		`,
	}
}
