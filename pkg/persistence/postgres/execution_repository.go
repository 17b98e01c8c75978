package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/persistence"
)

// ExecutionRepository handles workflow execution records.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// SaveExecution upserts an execution record. The executor calls this on every
// state transition, so the row always reflects the latest durable state.
func (r *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	inputJSON, err := json.Marshal(execution.InputData)
	if err != nil {
		return fmt.Errorf("failed to marshal input data: %w", err)
	}

	variablesJSON, err := json.Marshal(execution.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}

	nodeExecutionsJSON, err := json.Marshal(execution.NodeExecutions)
	if err != nil {
		return fmt.Errorf("failed to marshal node executions: %w", err)
	}

	query := `
		INSERT INTO workflow_executions (
			id, workflow_id, business_id, status, start_time, end_time,
			input_data, variables, node_executions, error_message
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			end_time = EXCLUDED.end_time,
			variables = EXCLUDED.variables,
			node_executions = EXCLUDED.node_executions,
			error_message = EXCLUDED.error_message
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.BusinessID,
		execution.Status,
		execution.StartTime,
		execution.EndTime,
		inputJSON,
		variablesJSON,
		nodeExecutionsJSON,
		nullString(execution.Error),
	)
	if err != nil {
		return &persistence.ExecutionError{Op: "SaveExecution", ExecutionID: execution.ID, Err: err}
	}

	return nil
}

func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	row := r.db.QueryRowContext(ctx, selectExecution+" WHERE id = $1", id)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, &persistence.ExecutionError{Op: "ExecutionByID", ExecutionID: id, Err: err}
	}

	return execution, nil
}

func (r *ExecutionRepository) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	query := selectExecution + " WHERE workflow_id = $1 ORDER BY start_time DESC"

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var executions []*models.WorkflowExecution

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

const selectExecution = `
	SELECT id, workflow_id, business_id, status, start_time, end_time,
	       input_data, variables, node_executions, error_message
	FROM workflow_executions
`

func scanExecution(scanner interface{ Scan(dest ...any) error }) (*models.WorkflowExecution, error) {
	var (
		execution                              models.WorkflowExecution
		endTime                                sql.NullTime
		errorMessage                           sql.NullString
		inputJSON, variablesJSON, nodeExecJSON []byte
	)

	err := scanner.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.BusinessID,
		&execution.Status,
		&execution.StartTime,
		&endTime,
		&inputJSON,
		&variablesJSON,
		&nodeExecJSON,
		&errorMessage,
	)
	if err != nil {
		return nil, err
	}

	if endTime.Valid {
		execution.EndTime = &endTime.Time
	}

	execution.Error = errorMessage.String
	execution.Variables = make(map[string]any)
	execution.NodeExecutions = make(map[string]*models.NodeExecution)

	if inputJSON != nil {
		err = json.Unmarshal(inputJSON, &execution.InputData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal input data: %w", err)
		}
	}

	if variablesJSON != nil {
		err = json.Unmarshal(variablesJSON, &execution.Variables)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
		}
	}

	if nodeExecJSON != nil {
		err = json.Unmarshal(nodeExecJSON, &execution.NodeExecutions)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal node executions: %w", err)
		}
	}

	return &execution, nil
}
