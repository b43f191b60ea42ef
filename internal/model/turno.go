package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TurnoStatus é o estado do ciclo de vida de um turno de caixa.
type TurnoStatus string

const (
	TurnoAberto  TurnoStatus = "aberto"
	TurnoFechado TurnoStatus = "fechado"
)

// TipoMovimentacao é o conjunto fechado de eventos monetários de um turno.
// O sinal é implícito no tipo — o valor gravado é sempre positivo.
type TipoMovimentacao string

const (
	TipoVenda      TipoMovimentacao = "venda"
	TipoSangria    TipoMovimentacao = "sangria"
	TipoSuprimento TipoMovimentacao = "suprimento"
)

// Valida reporta se o tipo pertence ao conjunto enumerado.
func (t TipoMovimentacao) Valida() bool {
	switch t {
	case TipoVenda, TipoSangria, TipoSuprimento:
		return true
	}
	return false
}

// Turno representa uma sessão de operador sobre um caixa físico ou lógico.
//
// Invariantes:
//   - No máximo um turno com status = 'aberto' por caixa, garantido por índice
//     único parcial em turnos(caixa_id) WHERE status = 'aberto' (ver infra).
//   - Os acumuladores TotalVendas / TotalSangrias / TotalSuprimentos são caches
//     derivados exclusivamente do diário de movimentações, mantidos por
//     incremento atômico no mesmo commit da movimentação. Nunca são gravados
//     diretamente por um cliente.
//   - Após o fechamento o registro é imutável.
type Turno struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CaixaID   uuid.UUID `gorm:"type:uuid;not null;index"`
	EmpresaID uuid.UUID `gorm:"type:uuid;not null;index"`

	AbertoPor  uuid.UUID `gorm:"type:uuid;not null"`
	AbertoEm   time.Time `gorm:"not null"`
	FechadoPor *uuid.UUID `gorm:"type:uuid"`
	FechadoEm  *time.Time

	ValorAbertura decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	ValorContado  *decimal.Decimal `gorm:"type:decimal(12,2)"`

	TotalVendas      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalSangrias    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalSuprimentos decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	// Diferenca = ValorContado - saldo esperado; definida somente no fechamento.
	Diferenca *decimal.Decimal `gorm:"type:decimal(12,2)"`

	Status      TurnoStatus `gorm:"type:varchar(20);not null;default:'aberto'"`
	Observacoes *string

	Movimentacoes []Movimentacao `gorm:"foreignKey:TurnoID"`
}

func (Turno) TableName() string { return "turnos" }

// Movimentacao é um evento imutável do diário de um turno.
// Movimentações nunca são alteradas nem removidas — correções entram como
// lançamentos compensatórios (ex.: um suprimento anulando uma sangria errada).
type Movimentacao struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TurnoID   uuid.UUID `gorm:"type:uuid;not null;index"`
	EmpresaID uuid.UUID `gorm:"type:uuid;not null;index"`

	Tipo      TipoMovimentacao `gorm:"type:varchar(20);not null"`
	Valor     decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	Descricao string           `gorm:"not null"`

	// VendaRef referencia a venda de origem; preenchido apenas para TipoVenda.
	VendaRef *uuid.UUID `gorm:"type:uuid"`

	RegistradoPor uuid.UUID `gorm:"type:uuid;not null"`
	RegistradoEm  time.Time `gorm:"not null"`
}

func (Movimentacao) TableName() string { return "movimentacoes" }
