package store

import "gorm.io/gorm"

// syncSchema creates or updates tables and indexes from the row models.
func syncSchema(db *gorm.DB) error {
	if db == nil {
		return ErrNilDB
	}
	if err := db.AutoMigrate(
		&taskRow{},
		&thoughtRow{},
		&correlationRow{},
	); err != nil {
		return err
	}
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_tasks_occurrence_status ON tasks(agent_occurrence_id, status, priority DESC, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_correlation ON tasks(correlation_id, agent_occurrence_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_task_id);`,
		`CREATE INDEX IF NOT EXISTS idx_thoughts_task ON thoughts(source_task_id, agent_occurrence_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_thoughts_occurrence_status ON thoughts(agent_occurrence_id, status, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_correlations_task ON correlations(task_id);`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
