package worker

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	// QueueFechamentos recebe os snapshots de conferência enfileirados no
	// fechamento de turno.
	QueueFechamentos = "jobs:fechamentos"

	// ReportsFechamentos é a lista consumida por dashboards e relatórios.
	ReportsFechamentos = "reports:fechamentos"

	// reportsRetencao limita a lista de relatórios aos N fechamentos mais
	// recentes; consumidores que precisam de tudo leem o banco.
	reportsRetencao = 1000
)

// Job é o envelope genérico das tarefas assíncronas.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// FechamentoJob é o snapshot imutável de um fechamento de turno, publicado
// para consumidores downstream. Contém tudo que um dashboard precisa sem
// reconsultar o banco.
type FechamentoJob struct {
	TurnoID          string          `json:"turno_id"`
	CaixaID          string          `json:"caixa_id"`
	EmpresaID        string          `json:"empresa_id"`
	ValorAbertura    decimal.Decimal `json:"valor_abertura"`
	TotalVendas      decimal.Decimal `json:"total_vendas"`
	TotalSangrias    decimal.Decimal `json:"total_sangrias"`
	TotalSuprimentos decimal.Decimal `json:"total_suprimentos"`
	SaldoEsperado    decimal.Decimal `json:"saldo_esperado"`
	ValorContado     decimal.Decimal `json:"valor_contado"`
	Diferenca        decimal.Decimal `json:"diferenca"`
	Classificacao    string          `json:"classificacao"`
	FechadoEm        string          `json:"fechado_em"`
}

// Dispatcher enfileira jobs assíncronos em listas Redis.
// O worker pool os consome via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueFechamento empurra um snapshot de fechamento para a fila.
func (d *Dispatcher) EnqueueFechamento(ctx context.Context, payload FechamentoJob) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: "fechamento", Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, QueueFechamentos, encoded).Err()
}
