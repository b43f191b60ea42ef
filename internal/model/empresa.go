package model

import (
	"time"

	"github.com/google/uuid"
)

// Empresa é o tenant. Todo registro do ledger carrega EmpresaID e toda leitura
// e escrita é delimitada por ele.
type Empresa struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nome      string    `gorm:"not null"`
	Ativa     bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Empresa) TableName() string { return "empresas" }
