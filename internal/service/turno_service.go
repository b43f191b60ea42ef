package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agenciabaepi/AgilizaOS-sub003/internal/dto"
	"github.com/agenciabaepi/AgilizaOS-sub003/internal/ledger"
	"github.com/agenciabaepi/AgilizaOS-sub003/internal/model"
	"github.com/agenciabaepi/AgilizaOS-sub003/internal/repository"
	"github.com/agenciabaepi/AgilizaOS-sub003/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TurnoService é o único ponto de entrada de mutação do ledger de turnos.
// Não existe update genérico: os acumuladores só mudam via RegistrarMovimentacao
// e o snapshot de fechamento só é gravado via Fechar.
type TurnoService interface {
	Abrir(ctx context.Context, empresaID, usuarioID uuid.UUID, req dto.AbrirTurnoRequest) (*dto.TurnoResponse, error)
	RegistrarMovimentacao(ctx context.Context, empresaID, usuarioID, turnoID uuid.UUID, req dto.MovimentacaoRequest) (*dto.MovimentacaoResponse, error)
	Fechar(ctx context.Context, empresaID, usuarioID, turnoID uuid.UUID, req dto.FecharTurnoRequest) (*dto.TurnoResponse, error)

	// TurnoAberto retorna (nil, nil) quando não há turno aberto no caixa.
	TurnoAberto(ctx context.Context, empresaID uuid.UUID, caixa string) (*dto.TurnoResponse, error)
	Relatorio(ctx context.Context, empresaID, turnoID uuid.UUID) (*dto.TurnoResponse, error)
	Movimentacoes(ctx context.Context, empresaID, turnoID uuid.UUID) ([]dto.MovimentacaoResponse, error)
	Auditoria(ctx context.Context, empresaID, turnoID uuid.UUID) (*dto.AuditoriaResponse, error)
	Historico(ctx context.Context, empresaID uuid.UUID, page, limit int) (*dto.HistoricoResponse, error)
}

type turnoService struct {
	repo       repository.TurnoRepository
	dispatcher *worker.Dispatcher // nil em testes de unidade
}

func NewTurnoService(repo repository.TurnoRepository, dispatcher *worker.Dispatcher) TurnoService {
	return &turnoService{repo: repo, dispatcher: dispatcher}
}

// runTx executa fn dentro de uma transação GORM quando há banco disponível,
// ou chama fn(nil) diretamente (modo teste de unidade com repositório fake).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// ── Abrir ─────────────────────────────────────────────────────────────────────

func (s *turnoService) Abrir(ctx context.Context, empresaID, usuarioID uuid.UUID, req dto.AbrirTurnoRequest) (*dto.TurnoResponse, error) {
	if req.ValorAbertura.IsNegative() {
		return nil, ledger.ErrValorInvalido
	}
	if strings.TrimSpace(req.Caixa) == "" {
		return nil, fmt.Errorf("nome de caixa vazio: %w", ledger.ErrValorInvalido)
	}

	caixa, err := s.repo.BuscarOuCriarCaixa(ctx, empresaID, req.Caixa)
	if err != nil {
		return nil, err
	}

	turno := &model.Turno{
		CaixaID:          caixa.ID,
		EmpresaID:        empresaID,
		AbertoPor:        usuarioID,
		AbertoEm:         time.Now().UTC(),
		ValorAbertura:    req.ValorAbertura,
		TotalVendas:      decimal.Zero,
		TotalSangrias:    decimal.Zero,
		TotalSuprimentos: decimal.Zero,
		Status:           model.TurnoAberto,
	}

	// Sem verificação prévia de "já existe aberto": quem decide a corrida é o
	// índice único parcial dentro do próprio INSERT (ver repository).
	if err := s.repo.CriarTurno(ctx, turno); err != nil {
		return nil, err
	}
	return turnoToResponse(turno), nil
}

// ── RegistrarMovimentacao ─────────────────────────────────────────────────────
// Insere no diário e incrementa o acumulador correspondente no mesmo commit.
// O UPDATE atômico condicionado a status = 'aberto' serve de trava de linha:
// duas movimentações simultâneas no mesmo turno serializam aqui, sem
// read-modify-write em código.

func (s *turnoService) RegistrarMovimentacao(ctx context.Context, empresaID, usuarioID, turnoID uuid.UUID, req dto.MovimentacaoRequest) (*dto.MovimentacaoResponse, error) {
	tipo := model.TipoMovimentacao(req.Tipo)
	if !tipo.Valida() {
		return nil, fmt.Errorf("tipo de movimentação %q: %w", req.Tipo, ledger.ErrValorInvalido)
	}
	if !req.Valor.IsPositive() {
		return nil, ledger.ErrValorInvalido
	}

	var vendaRef *uuid.UUID
	if req.VendaRef != nil && tipo == model.TipoVenda {
		ref, err := uuid.Parse(*req.VendaRef)
		if err != nil {
			return nil, fmt.Errorf("venda_ref %q: %w", *req.VendaRef, ledger.ErrValorInvalido)
		}
		vendaRef = &ref
	}

	mov := &model.Movimentacao{
		TurnoID:       turnoID,
		EmpresaID:     empresaID,
		Tipo:          tipo,
		Valor:         req.Valor,
		Descricao:     req.Descricao,
		VendaRef:      vendaRef,
		RegistradoPor: usuarioID,
		RegistradoEm:  time.Now().UTC(),
	}

	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		rows, err := s.repo.IncrementarAcumuladorTx(tx, empresaID, turnoID, tipo, req.Valor)
		if err != nil {
			return err
		}
		if rows == 0 {
			// Turno ausente, fechado ou de outra empresa — indistinguíveis.
			return ledger.ErrTurnoNaoAberto
		}
		return s.repo.CriarMovimentacaoTx(tx, mov)
	})
	if err != nil {
		return nil, err
	}
	return movimentacaoToResponse(mov), nil
}

// ── Fechar ────────────────────────────────────────────────────────────────────
// Trava a linha do turno, deriva o saldo esperado dos acumuladores e grava o
// snapshot de fechamento em um único commit. A diferença retornada é a
// autoritativa — a UI exibe, nunca recalcula.

func (s *turnoService) Fechar(ctx context.Context, empresaID, usuarioID, turnoID uuid.UUID, req dto.FecharTurnoRequest) (*dto.TurnoResponse, error) {
	if req.ValorContado.IsNegative() {
		return nil, ledger.ErrValorInvalido
	}

	var fechado *model.Turno
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		t, err := s.repo.BuscarTurnoAbertoTx(tx, empresaID, turnoID)
		if err != nil {
			return err
		}

		esperado := ledger.SaldoEsperado(t.ValorAbertura, t.TotalVendas, t.TotalSuprimentos, t.TotalSangrias)
		dif := ledger.Diferenca(req.ValorContado, esperado)
		agora := time.Now().UTC()
		contado := req.ValorContado

		t.Status = model.TurnoFechado
		t.FechadoEm = &agora
		t.FechadoPor = &usuarioID
		t.ValorContado = &contado
		t.Diferenca = &dif
		t.Observacoes = req.Observacoes

		if err := s.repo.FecharTurnoTx(tx, t); err != nil {
			return err
		}
		fechado = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publicarFechamento(ctx, fechado)
	return turnoToResponse(fechado), nil
}

// publicarFechamento envia o snapshot de conferência para os consumidores de
// relatório (dashboards). Falha de fila não desfaz o fechamento já commitado.
func (s *turnoService) publicarFechamento(ctx context.Context, t *model.Turno) {
	if s.dispatcher == nil {
		return
	}
	esperado := ledger.SaldoEsperado(t.ValorAbertura, t.TotalVendas, t.TotalSuprimentos, t.TotalSangrias)
	job := worker.FechamentoJob{
		TurnoID:          t.ID.String(),
		CaixaID:          t.CaixaID.String(),
		EmpresaID:        t.EmpresaID.String(),
		ValorAbertura:    t.ValorAbertura,
		TotalVendas:      t.TotalVendas,
		TotalSangrias:    t.TotalSangrias,
		TotalSuprimentos: t.TotalSuprimentos,
		SaldoEsperado:    esperado,
		ValorContado:     *t.ValorContado,
		Diferenca:        *t.Diferenca,
		Classificacao:    string(ledger.Classificar(*t.Diferenca)),
		FechadoEm:        t.FechadoEm.UTC().Format(time.RFC3339),
	}
	if err := s.dispatcher.EnqueueFechamento(ctx, job); err != nil {
		log.Warn().Err(err).Str("turno_id", job.TurnoID).Msg("falha ao enfileirar snapshot de fechamento")
	}
}

// ── Leituras ──────────────────────────────────────────────────────────────────

func (s *turnoService) TurnoAberto(ctx context.Context, empresaID uuid.UUID, caixa string) (*dto.TurnoResponse, error) {
	c, err := s.repo.BuscarCaixaPorNome(ctx, empresaID, caixa)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}
	t, err := s.repo.TurnoAbertoPorCaixa(ctx, empresaID, c.ID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	return turnoToResponse(t), nil
}

func (s *turnoService) Relatorio(ctx context.Context, empresaID, turnoID uuid.UUID) (*dto.TurnoResponse, error) {
	t, err := s.repo.BuscarTurno(ctx, empresaID, turnoID)
	if err != nil {
		return nil, err
	}
	return turnoToResponse(t), nil
}

func (s *turnoService) Movimentacoes(ctx context.Context, empresaID, turnoID uuid.UUID) ([]dto.MovimentacaoResponse, error) {
	// Confirma a existência do turno dentro do tenant antes de listar, para
	// que um diário vazio e um turno alheio não se confundam.
	if _, err := s.repo.BuscarTurno(ctx, empresaID, turnoID); err != nil {
		return nil, err
	}
	movs, err := s.repo.ListarMovimentacoes(ctx, empresaID, turnoID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MovimentacaoResponse, 0, len(movs))
	for i := range movs {
		out = append(out, *movimentacaoToResponse(&movs[i]))
	}
	return out, nil
}

// Auditoria recomputa os totais a partir do diário cru e os confronta com os
// acumuladores em cache. Com as escritas transacionais, qualquer divergência
// indica corrupção e deve soar alarme, não ser corrigida silenciosamente.
func (s *turnoService) Auditoria(ctx context.Context, empresaID, turnoID uuid.UUID) (*dto.AuditoriaResponse, error) {
	t, err := s.repo.BuscarTurno(ctx, empresaID, turnoID)
	if err != nil {
		return nil, err
	}
	somas, err := s.repo.SomarPorTipo(ctx, empresaID, turnoID)
	if err != nil {
		return nil, err
	}

	resp := &dto.AuditoriaResponse{
		TurnoID: t.ID.String(),
		Acumulados: dto.TotaisPorTipo{
			Vendas:      t.TotalVendas,
			Sangrias:    t.TotalSangrias,
			Suprimentos: t.TotalSuprimentos,
		},
		Recalculados: dto.TotaisPorTipo{
			Vendas:      somas[model.TipoVenda],
			Sangrias:    somas[model.TipoSangria],
			Suprimentos: somas[model.TipoSuprimento],
		},
	}

	checa := func(nome string, acumulado, recalculado decimal.Decimal) {
		if !acumulado.Equal(recalculado) {
			resp.Divergencias = append(resp.Divergencias,
				fmt.Sprintf("%s: acumulado %s, diário %s", nome, acumulado.StringFixed(2), recalculado.StringFixed(2)))
		}
	}
	checa("total_vendas", t.TotalVendas, somas[model.TipoVenda])
	checa("total_sangrias", t.TotalSangrias, somas[model.TipoSangria])
	checa("total_suprimentos", t.TotalSuprimentos, somas[model.TipoSuprimento])

	resp.Consistente = len(resp.Divergencias) == 0
	if !resp.Consistente {
		log.Error().
			Str("turno_id", resp.TurnoID).
			Strs("divergencias", resp.Divergencias).
			Msg("acumuladores divergem do diário de movimentações")
	}
	return resp, nil
}

func (s *turnoService) Historico(ctx context.Context, empresaID uuid.UUID, page, limit int) (*dto.HistoricoResponse, error) {
	turnos, total, err := s.repo.ListarFechados(ctx, empresaID, page, limit)
	if err != nil {
		return nil, err
	}
	resp := &dto.HistoricoResponse{
		Turnos: make([]dto.TurnoResponse, 0, len(turnos)),
		Total:  total,
		Page:   page,
		Limit:  limit,
	}
	for i := range turnos {
		resp.Turnos = append(resp.Turnos, *turnoToResponse(&turnos[i]))
	}
	return resp, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func turnoToResponse(t *model.Turno) *dto.TurnoResponse {
	resp := &dto.TurnoResponse{
		TurnoID:          t.ID.String(),
		CaixaID:          t.CaixaID.String(),
		Status:           string(t.Status),
		ValorAbertura:    t.ValorAbertura,
		TotalVendas:      t.TotalVendas,
		TotalSangrias:    t.TotalSangrias,
		TotalSuprimentos: t.TotalSuprimentos,
		SaldoEsperado:    ledger.SaldoEsperado(t.ValorAbertura, t.TotalVendas, t.TotalSuprimentos, t.TotalSangrias),
		ValorContado:     t.ValorContado,
		Observacoes:      t.Observacoes,
		AbertoEm:         t.AbertoEm.UTC().Format(time.RFC3339),
	}
	if t.Diferenca != nil {
		resp.Diferenca = &dto.DiferencaResponse{
			Valor:         *t.Diferenca,
			Classificacao: string(ledger.Classificar(*t.Diferenca)),
		}
	}
	if t.FechadoEm != nil {
		s := t.FechadoEm.UTC().Format(time.RFC3339)
		resp.FechadoEm = &s
	}
	return resp
}

func movimentacaoToResponse(m *model.Movimentacao) *dto.MovimentacaoResponse {
	resp := &dto.MovimentacaoResponse{
		ID:           m.ID.String(),
		TurnoID:      m.TurnoID.String(),
		Tipo:         string(m.Tipo),
		Valor:        m.Valor,
		Descricao:    m.Descricao,
		RegistradoEm: m.RegistradoEm.UTC().Format(time.RFC3339),
	}
	if m.VendaRef != nil {
		s := m.VendaRef.String()
		resp.VendaRef = &s
	}
	return resp
}
