package model

import (
	"time"

	"github.com/google/uuid"
)

// Caixa é uma gaveta nomeada pertencente a uma empresa. Criado de forma
// preguiçosa na primeira abertura de turno e imutável depois disso.
type Caixa struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmpresaID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_caixa_empresa_nome"`
	Nome      string    `gorm:"not null;uniqueIndex:idx_caixa_empresa_nome"`
	CreatedAt time.Time
}

func (Caixa) TableName() string { return "caixas" }
