package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JSONMap is a free-form jsonb payload (entity snapshots).
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return errors.New("unsupported type for JSONMap")
}

// AuditLog is an immutable record of a state-changing operation. The core
// only ever inserts rows; updates and deletes are forbidden by convention.
type AuditLog struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EntityType     string     `json:"entity_type" gorm:"type:varchar(100);not null;index"`
	EntityID       string     `json:"entity_id" gorm:"type:varchar(100);not null;index"`
	Action         Action     `json:"action" gorm:"type:varchar(20);not null"`
	OldValues      JSONMap    `json:"old_values,omitempty" gorm:"type:jsonb"`
	NewValues      JSONMap    `json:"new_values,omitempty" gorm:"type:jsonb"`
	UserID         *uuid.UUID `json:"user_id,omitempty" gorm:"type:uuid;index"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty" gorm:"type:uuid;index"`
	IPAddress      string     `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent      string     `json:"user_agent" gorm:"type:text"`
	CreatedAt      time.Time  `json:"created_at" gorm:"index"`
}

// TableName returns the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}
