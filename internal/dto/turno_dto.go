package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirTurnoRequest struct {
	// Caixa é o nome da gaveta; criado na primeira abertura se não existir.
	Caixa         string          `json:"caixa"          validate:"required,min=1,max=60"`
	ValorAbertura decimal.Decimal `json:"valor_abertura" validate:"min=0"`
}

type MovimentacaoRequest struct {
	Tipo      string          `json:"tipo"      validate:"required,oneof=venda sangria suprimento"`
	Valor     decimal.Decimal `json:"valor"     validate:"required,gt=0"`
	Descricao string          `json:"descricao" validate:"required,min=3"`
	// VendaRef só faz sentido para tipo = venda.
	VendaRef *string `json:"venda_ref" validate:"omitempty,uuid"`
}

type FecharTurnoRequest struct {
	ValorContado decimal.Decimal `json:"valor_contado" validate:"min=0"`
	Observacoes  *string         `json:"observacoes"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DiferencaResponse struct {
	Valor         decimal.Decimal `json:"valor"`
	Classificacao string          `json:"classificacao"` // equilibrado | sobra | falta
}

type TurnoResponse struct {
	TurnoID          string          `json:"turno_id"`
	CaixaID          string          `json:"caixa_id"`
	Status           string          `json:"status"`
	ValorAbertura    decimal.Decimal `json:"valor_abertura"`
	TotalVendas      decimal.Decimal `json:"total_vendas"`
	TotalSangrias    decimal.Decimal `json:"total_sangrias"`
	TotalSuprimentos decimal.Decimal `json:"total_suprimentos"`
	// SaldoEsperado é sempre derivado no servidor; a UI nunca recalcula.
	SaldoEsperado decimal.Decimal    `json:"saldo_esperado"`
	ValorContado  *decimal.Decimal   `json:"valor_contado,omitempty"`
	Diferenca     *DiferencaResponse `json:"diferenca,omitempty"`
	Observacoes   *string            `json:"observacoes,omitempty"`
	AbertoEm      string             `json:"aberto_em"`
	FechadoEm     *string            `json:"fechado_em,omitempty"`
}

type MovimentacaoResponse struct {
	ID           string          `json:"id"`
	TurnoID      string          `json:"turno_id"`
	Tipo         string          `json:"tipo"`
	Valor        decimal.Decimal `json:"valor"`
	Descricao    string          `json:"descricao"`
	VendaRef     *string         `json:"venda_ref,omitempty"`
	RegistradoEm string          `json:"registrado_em"`
}

// TotaisPorTipo agrupa as somas recomputadas a partir do diário cru.
type TotaisPorTipo struct {
	Vendas      decimal.Decimal `json:"vendas"`
	Sangrias    decimal.Decimal `json:"sangrias"`
	Suprimentos decimal.Decimal `json:"suprimentos"`
}

// AuditoriaResponse compara os acumuladores em cache com a soma do diário.
// Consistente = true exige igualdade exata nos três totais.
type AuditoriaResponse struct {
	TurnoID      string        `json:"turno_id"`
	Consistente  bool          `json:"consistente"`
	Acumulados   TotaisPorTipo `json:"acumulados"`
	Recalculados TotaisPorTipo `json:"recalculados"`
	Divergencias []string      `json:"divergencias,omitempty"`
}

type HistoricoResponse struct {
	Turnos []TurnoResponse `json:"turnos"`
	Total  int64           `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}
