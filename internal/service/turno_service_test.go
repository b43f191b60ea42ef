package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agenciabaepi/AgilizaOS-sub003/internal/dto"
	"github.com/agenciabaepi/AgilizaOS-sub003/internal/ledger"
	"github.com/agenciabaepi/AgilizaOS-sub003/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── Repositório fake em memória ──────────────────────────────────────────────
// Reproduz a semântica que o Postgres garante em produção: o índice único
// parcial (um turno aberto por caixa) e o incremento condicionado a
// status = 'aberto', ambos sob um único mutex para que os testes de corrida
// sejam válidos.

type fakeTurnoRepo struct {
	mu     sync.Mutex
	caixas map[string]*model.Caixa
	turnos map[uuid.UUID]*model.Turno
	movs   []model.Movimentacao
}

func newFakeTurnoRepo() *fakeTurnoRepo {
	return &fakeTurnoRepo{
		caixas: make(map[string]*model.Caixa),
		turnos: make(map[uuid.UUID]*model.Turno),
	}
}

func (r *fakeTurnoRepo) DB() *gorm.DB { return nil }

func caixaKey(empresaID uuid.UUID, nome string) string { return empresaID.String() + "/" + nome }

func (r *fakeTurnoRepo) BuscarOuCriarCaixa(_ context.Context, empresaID uuid.UUID, nome string) (*model.Caixa, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.caixas[caixaKey(empresaID, nome)]; ok {
		return c, nil
	}
	c := &model.Caixa{ID: uuid.New(), EmpresaID: empresaID, Nome: nome, CreatedAt: time.Now()}
	r.caixas[caixaKey(empresaID, nome)] = c
	return c, nil
}

func (r *fakeTurnoRepo) BuscarCaixaPorNome(_ context.Context, empresaID uuid.UUID, nome string) (*model.Caixa, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.caixas[caixaKey(empresaID, nome)]; ok {
		return c, nil
	}
	return nil, nil
}

func (r *fakeTurnoRepo) CriarTurno(_ context.Context, t *model.Turno) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Equivalente ao índice único parcial: decide a corrida no "INSERT".
	for _, existente := range r.turnos {
		if existente.CaixaID == t.CaixaID && existente.Status == model.TurnoAberto {
			return ledger.ErrTurnoJaAberto
		}
	}
	t.ID = uuid.New()
	copia := *t
	r.turnos[t.ID] = &copia
	return nil
}

func (r *fakeTurnoRepo) TurnoAbertoPorCaixa(_ context.Context, empresaID, caixaID uuid.UUID) (*model.Turno, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.turnos {
		if t.CaixaID == caixaID && t.EmpresaID == empresaID && t.Status == model.TurnoAberto {
			copia := *t
			return &copia, nil
		}
	}
	return nil, nil
}

func (r *fakeTurnoRepo) BuscarTurno(_ context.Context, empresaID, turnoID uuid.UUID) (*model.Turno, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.turnos[turnoID]
	if !ok || t.EmpresaID != empresaID {
		return nil, gorm.ErrRecordNotFound
	}
	copia := *t
	return &copia, nil
}

func (r *fakeTurnoRepo) IncrementarAcumuladorTx(_ *gorm.DB, empresaID, turnoID uuid.UUID, tipo model.TipoMovimentacao, valor decimal.Decimal) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.turnos[turnoID]
	if !ok || t.EmpresaID != empresaID || t.Status != model.TurnoAberto {
		return 0, nil
	}
	switch tipo {
	case model.TipoVenda:
		t.TotalVendas = t.TotalVendas.Add(valor)
	case model.TipoSangria:
		t.TotalSangrias = t.TotalSangrias.Add(valor)
	case model.TipoSuprimento:
		t.TotalSuprimentos = t.TotalSuprimentos.Add(valor)
	default:
		return 0, errors.New("tipo desconhecido")
	}
	return 1, nil
}

func (r *fakeTurnoRepo) CriarMovimentacaoTx(_ *gorm.DB, m *model.Movimentacao) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = uuid.New()
	r.movs = append(r.movs, *m)
	return nil
}

func (r *fakeTurnoRepo) BuscarTurnoAbertoTx(_ *gorm.DB, empresaID, turnoID uuid.UUID) (*model.Turno, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.turnos[turnoID]
	if !ok || t.EmpresaID != empresaID || t.Status != model.TurnoAberto {
		return nil, ledger.ErrTurnoNaoAberto
	}
	copia := *t
	return &copia, nil
}

func (r *fakeTurnoRepo) FecharTurnoTx(_ *gorm.DB, t *model.Turno) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	atual, ok := r.turnos[t.ID]
	if !ok || atual.EmpresaID != t.EmpresaID || atual.Status != model.TurnoAberto {
		return ledger.ErrConflitoGravacao
	}
	copia := *t
	r.turnos[t.ID] = &copia
	return nil
}

func (r *fakeTurnoRepo) ListarMovimentacoes(_ context.Context, empresaID, turnoID uuid.UUID) ([]model.Movimentacao, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Movimentacao
	for _, m := range r.movs {
		if m.TurnoID == turnoID && m.EmpresaID == empresaID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeTurnoRepo) SomarPorTipo(_ context.Context, empresaID, turnoID uuid.UUID) (map[model.TipoMovimentacao]decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	somas := map[model.TipoMovimentacao]decimal.Decimal{
		model.TipoVenda:      decimal.Zero,
		model.TipoSangria:    decimal.Zero,
		model.TipoSuprimento: decimal.Zero,
	}
	for _, m := range r.movs {
		if m.TurnoID == turnoID && m.EmpresaID == empresaID {
			somas[m.Tipo] = somas[m.Tipo].Add(m.Valor)
		}
	}
	return somas, nil
}

func (r *fakeTurnoRepo) ListarFechados(_ context.Context, empresaID uuid.UUID, page, limit int) ([]model.Turno, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Turno
	for _, t := range r.turnos {
		if t.EmpresaID == empresaID && t.Status == model.TurnoFechado {
			out = append(out, *t)
		}
	}
	return out, int64(len(out)), nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

func novoService() (*fakeTurnoRepo, TurnoService, uuid.UUID, uuid.UUID) {
	repo := newFakeTurnoRepo()
	svc := NewTurnoService(repo, nil)
	return repo, svc, uuid.New(), uuid.New()
}

func abrirTurno(t *testing.T, svc TurnoService, empresaID, usuarioID uuid.UUID, caixa, abertura string) *dto.TurnoResponse {
	t.Helper()
	resp, err := svc.Abrir(context.Background(), empresaID, usuarioID, dto.AbrirTurnoRequest{
		Caixa:         caixa,
		ValorAbertura: d(t, abertura),
	})
	require.NoError(t, err)
	return resp
}

func registrar(t *testing.T, svc TurnoService, empresaID, usuarioID uuid.UUID, turnoID string, tipo, valor string) {
	t.Helper()
	id, err := uuid.Parse(turnoID)
	require.NoError(t, err)
	_, err = svc.RegistrarMovimentacao(context.Background(), empresaID, usuarioID, id, dto.MovimentacaoRequest{
		Tipo:      tipo,
		Valor:     d(t, valor),
		Descricao: "movimentação de teste",
	})
	require.NoError(t, err)
}

// ── Testes ───────────────────────────────────────────────────────────────────

func TestCenarioCompletoDeConferencia(t *testing.T) {
	_, svc, empresaID, usuarioID := novoService()
	ctx := context.Background()

	turno := abrirTurno(t, svc, empresaID, usuarioID, "Caixa 1", "100.00")
	require.Equal(t, "aberto", turno.Status)

	registrar(t, svc, empresaID, usuarioID, turno.TurnoID, "venda", "50.00")
	registrar(t, svc, empresaID, usuarioID, turno.TurnoID, "sangria", "30.00")
	registrar(t, svc, empresaID, usuarioID, turno.TurnoID, "suprimento", "20.00")

	turnoID, _ := uuid.Parse(turno.TurnoID)
	rel, err := svc.Relatorio(ctx, empresaID, turnoID)
	require.NoError(t, err)
	assert.True(t, rel.SaldoEsperado.Equal(d(t, "140.00")), "saldo esperado %s", rel.SaldoEsperado)

	fechado, err := svc.Fechar(ctx, empresaID, usuarioID, turnoID, dto.FecharTurnoRequest{
		ValorContado: d(t, "145.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "fechado", fechado.Status)
	require.NotNil(t, fechado.Diferenca)
	assert.True(t, fechado.Diferenca.Valor.Equal(d(t, "5.00")), "diferença %s", fechado.Diferenca.Valor)
	assert.Equal(t, "sobra", fechado.Diferenca.Classificacao)
	require.NotNil(t, fechado.ValorContado)
	assert.True(t, fechado.ValorContado.Equal(d(t, "145.00")))
	assert.NotNil(t, fechado.FechadoEm)
}

func TestFechamentoComFalta(t *testing.T) {
	_, svc, empresaID, usuarioID := novoService()

	turno := abrirTurno(t, svc, empresaID, usuarioID, "Caixa 1", "100.00")
	registrar(t, svc, empresaID, usuarioID, turno.TurnoID, "venda", "40.00")

	turnoID, _ := uuid.Parse(turno.TurnoID)
	fechado, err := svc.Fechar(context.Background(), empresaID, usuarioID, turnoID, dto.FecharTurnoRequest{
		ValorContado: d(t, "120.00"),
	})
	require.NoError(t, err)
	assert.True(t, fechado.Diferenca.Valor.Equal(d(t, "-20.00")))
	assert.Equal(t, "falta", fechado.Diferenca.Classificacao)
}

func TestAberturaDuplicada(t *testing.T) {
	_, svc, empresaID, usuarioID := novoService()

	abrirTurno(t, svc, empresaID, usuarioID, "Caixa 1", "100.00")

	_, err := svc.Abrir(context.Background(), empresaID, usuarioID, dto.AbrirTurnoRequest{
		Caixa:         "Caixa 1",
		ValorAbertura: d(t, "50.00"),
	})
	assert.ErrorIs(t, err, ledger.ErrTurnoJaAberto)

	// Outro caixa da mesma empresa não é afetado
	outro := abrirTurno(t, svc, empresaID, usuarioID, "Caixa 2", "0")
	assert.Equal(t, "aberto", outro.Status)
}

func TestAberturaConcorrente(t *testing.T) {
	_, svc, empresaID, usuarioID := novoService()
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	resultados := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Abrir(ctx, empresaID, usuarioID, dto.AbrirTurnoRequest{
				Caixa:         "Caixa 1",
				ValorAbertura: d(t, "100.00"),
			})
			resultados <- err
		}()
	}
	wg.Wait()
	close(resultados)

	sucessos, perdedores := 0, 0
	for err := range resultados {
		switch {
		case err == nil:
			sucessos++
		case errors.Is(err, ledger.ErrTurnoJaAberto):
			perdedores++
		default:
			t.Fatalf("erro inesperado: %v", err)
		}
	}
	assert.Equal(t, 1, sucessos)
	assert.Equal(t, n-1, perdedores)
}

func TestMovimentacoesConcorrentes(t *testing.T) {
	_, svc, empresaID, usuarioID := novoService()
	ctx := context.Background()

	turno := abrirTurno(t, svc, empresaID, usuarioID, "Caixa 1", "0")
	turnoID, _ := uuid.Parse(turno.TurnoID)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RegistrarMovimentacao(ctx, empresaID, usuarioID, turnoID, dto.MovimentacaoRequest{
				Tipo:      "venda",
				Valor:     d(t, "1.00"),
				Descricao: "venda concorrente",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rel, err := svc.Relatorio(ctx, empresaID, turnoID)
	require.NoError(t, err)
	assert.True(t, rel.TotalVendas.Equal(d(t, "50.00")), "nenhuma atualização pode se perder: %s", rel.TotalVendas)
}

func TestTurnoFechadoEImutavel(t *testing.T) {
	_, svc, empresaID, usuarioID := novoService()
	ctx := context.Background()

	turno := abrirTurno(t, svc, empresaID, usuarioID, "Caixa 1", "100.00")
	registrar(t, svc, empresaID, usuarioID, turno.TurnoID, "venda", "50.00")
	turnoID, _ := uuid.Parse(turno.TurnoID)

	_, err := svc.Fechar(ctx, empresaID, usuarioID, turnoID, dto.FecharTurnoRequest{ValorContado: d(t, "150.00")})
	require.NoError(t, err)

	// Movimentação após o fechamento
	_, err = svc.RegistrarMovimentacao(ctx, empresaID, usuarioID, turnoID, dto.MovimentacaoRequest{
		Tipo:      "venda",
		Valor:     d(t, "10.00"),
		Descricao: "venda tardia",
	})
	assert.ErrorIs(t, err, ledger.ErrTurnoNaoAberto)

	// Segundo fechamento
	_, err = svc.Fechar(ctx, empresaID, usuarioID, turnoID, dto.FecharTurnoRequest{ValorContado: d(t, "0")})
	assert.ErrorIs(t, err, ledger.ErrTurnoNaoAberto)

	// Acumuladores congelados
	rel, err := svc.Relatorio(ctx, empresaID, turnoID)
	require.NoError(t, err)
	assert.True(t, rel.TotalVendas.Equal(d(t, "50.00")))
	assert.True(t, rel.Diferenca.Valor.Equal(d(t, "0.00")))
}

func TestValoresInvalidos(t *testing.T) {
	_, svc, empresaID, usuarioID := novoService()
	ctx := context.Background()

	_, err := svc.Abrir(ctx, empresaID, usuarioID, dto.AbrirTurnoRequest{
		Caixa:         "Caixa 1",
		ValorAbertura: d(t, "-1.00"),
	})
	assert.ErrorIs(t, err, ledger.ErrValorInvalido)

	turno := abrirTurno(t, svc, empresaID, usuarioID, "Caixa 1", "0")
	turnoID, _ := uuid.Parse(turno.TurnoID)

	for _, valor := range []string{"0", "-5.00"} {
		_, err = svc.RegistrarMovimentacao(ctx, empresaID, usuarioID, turnoID, dto.MovimentacaoRequest{
			Tipo:      "venda",
			Valor:     d(t, valor),
			Descricao: "valor inválido",
		})
		assert.ErrorIs(t, err, ledger.ErrValorInvalido, "valor %s", valor)
	}

	_, err = svc.RegistrarMovimentacao(ctx, empresaID, usuarioID, turnoID, dto.MovimentacaoRequest{
		Tipo:      "estorno",
		Valor:     d(t, "10.00"),
		Descricao: "tipo fora do conjunto",
	})
	assert.ErrorIs(t, err, ledger.ErrValorInvalido)

	// venda_ref que não é UUID também cai na taxonomia, não num erro genérico
	ref := "nao-e-uuid"
	_, err = svc.RegistrarMovimentacao(ctx, empresaID, usuarioID, turnoID, dto.MovimentacaoRequest{
		Tipo:      "venda",
		Valor:     d(t, "10.00"),
		Descricao: "referência malformada",
		VendaRef:  &ref,
	})
	assert.ErrorIs(t, err, ledger.ErrValorInvalido)

	_, err = svc.Fechar(ctx, empresaID, usuarioID, turnoID, dto.FecharTurnoRequest{ValorContado: d(t, "-0.01")})
	assert.ErrorIs(t, err, ledger.ErrValorInvalido)

	// Nome de caixa vazio ou só espaços não abre turno
	for _, nome := range []string{"", "   "} {
		_, err = svc.Abrir(ctx, empresaID, usuarioID, dto.AbrirTurnoRequest{
			Caixa:         nome,
			ValorAbertura: d(t, "10.00"),
		})
		assert.ErrorIs(t, err, ledger.ErrValorInvalido, "caixa %q", nome)
	}
}

func TestIsolamentoEntreEmpresas(t *testing.T) {
	_, svc, empresaA, usuarioID := novoService()
	empresaB := uuid.New()
	ctx := context.Background()

	turno := abrirTurno(t, svc, empresaA, usuarioID, "Caixa 1", "100.00")
	turnoID, _ := uuid.Parse(turno.TurnoID)

	// Empresa B com o ID adivinhado: mesmo desfecho de turno inexistente.
	_, err := svc.RegistrarMovimentacao(ctx, empresaB, usuarioID, turnoID, dto.MovimentacaoRequest{
		Tipo:      "venda",
		Valor:     d(t, "10.00"),
		Descricao: "acesso cruzado",
	})
	assert.ErrorIs(t, err, ledger.ErrTurnoNaoAberto)

	_, err = svc.Fechar(ctx, empresaB, usuarioID, turnoID, dto.FecharTurnoRequest{ValorContado: d(t, "0")})
	assert.ErrorIs(t, err, ledger.ErrTurnoNaoAberto)

	_, err = svc.Relatorio(ctx, empresaB, turnoID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// Mesmo nome de caixa em outra empresa abre normalmente.
	outro := abrirTurno(t, svc, empresaB, usuarioID, "Caixa 1", "10.00")
	assert.Equal(t, "aberto", outro.Status)
}

func TestAuditoriaConfereComDiario(t *testing.T) {
	_, svc, empresaID, usuarioID := novoService()
	ctx := context.Background()

	turno := abrirTurno(t, svc, empresaID, usuarioID, "Caixa 1", "25.00")
	turnoID, _ := uuid.Parse(turno.TurnoID)

	lancamentos := []struct{ tipo, valor string }{
		{"venda", "10.00"}, {"venda", "2.50"}, {"sangria", "4.00"},
		{"suprimento", "1.25"}, {"venda", "0.75"}, {"sangria", "0.50"},
	}
	for _, l := range lancamentos {
		registrar(t, svc, empresaID, usuarioID, turno.TurnoID, l.tipo, l.valor)
	}

	aud, err := svc.Auditoria(ctx, empresaID, turnoID)
	require.NoError(t, err)
	assert.True(t, aud.Consistente, "divergências: %v", aud.Divergencias)
	assert.True(t, aud.Acumulados.Vendas.Equal(d(t, "13.25")))
	assert.True(t, aud.Acumulados.Sangrias.Equal(d(t, "4.50")))
	assert.True(t, aud.Acumulados.Suprimentos.Equal(d(t, "1.25")))
	assert.True(t, aud.Recalculados.Vendas.Equal(aud.Acumulados.Vendas))
	assert.True(t, aud.Recalculados.Sangrias.Equal(aud.Acumulados.Sangrias))
	assert.True(t, aud.Recalculados.Suprimentos.Equal(aud.Acumulados.Suprimentos))

	// Identidade de saldo: abertura + vendas + suprimentos - sangrias
	rel, err := svc.Relatorio(ctx, empresaID, turnoID)
	require.NoError(t, err)
	assert.True(t, rel.SaldoEsperado.Equal(d(t, "35.00")), "saldo %s", rel.SaldoEsperado)
}

func TestTurnoAbertoLookup(t *testing.T) {
	_, svc, empresaID, usuarioID := novoService()
	ctx := context.Background()

	aberto, err := svc.TurnoAberto(ctx, empresaID, "Caixa 1")
	require.NoError(t, err)
	assert.Nil(t, aberto, "caixa inexistente não tem turno aberto")

	turno := abrirTurno(t, svc, empresaID, usuarioID, "Caixa 1", "80.00")

	aberto, err = svc.TurnoAberto(ctx, empresaID, "Caixa 1")
	require.NoError(t, err)
	require.NotNil(t, aberto)
	assert.Equal(t, turno.TurnoID, aberto.TurnoID)
	assert.True(t, aberto.SaldoEsperado.Equal(d(t, "80.00")))

	turnoID, _ := uuid.Parse(turno.TurnoID)
	_, err = svc.Fechar(ctx, empresaID, usuarioID, turnoID, dto.FecharTurnoRequest{ValorContado: d(t, "80.00")})
	require.NoError(t, err)

	aberto, err = svc.TurnoAberto(ctx, empresaID, "Caixa 1")
	require.NoError(t, err)
	assert.Nil(t, aberto, "após o fechamento não há turno aberto")
}

func TestHistoricoSomenteFechados(t *testing.T) {
	_, svc, empresaID, usuarioID := novoService()
	ctx := context.Background()

	t1 := abrirTurno(t, svc, empresaID, usuarioID, "Caixa 1", "10.00")
	id1, _ := uuid.Parse(t1.TurnoID)
	_, err := svc.Fechar(ctx, empresaID, usuarioID, id1, dto.FecharTurnoRequest{ValorContado: d(t, "10.00")})
	require.NoError(t, err)

	abrirTurno(t, svc, empresaID, usuarioID, "Caixa 2", "20.00") // permanece aberto

	hist, err := svc.Historico(ctx, empresaID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hist.Total)
	require.Len(t, hist.Turnos, 1)
	assert.Equal(t, t1.TurnoID, hist.Turnos[0].TurnoID)
	assert.Equal(t, "fechado", hist.Turnos[0].Status)
}

func TestMovimentacoesDoDiario(t *testing.T) {
	_, svc, empresaID, usuarioID := novoService()
	ctx := context.Background()

	turno := abrirTurno(t, svc, empresaID, usuarioID, "Caixa 1", "0")
	turnoID, _ := uuid.Parse(turno.TurnoID)

	ref := uuid.NewString()
	_, err := svc.RegistrarMovimentacao(ctx, empresaID, usuarioID, turnoID, dto.MovimentacaoRequest{
		Tipo:      "venda",
		Valor:     d(t, "99.90"),
		Descricao: "OS 1042 — troca de tela",
		VendaRef:  &ref,
	})
	require.NoError(t, err)

	movs, err := svc.Movimentacoes(ctx, empresaID, turnoID)
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, "venda", movs[0].Tipo)
	require.NotNil(t, movs[0].VendaRef)
	assert.Equal(t, ref, *movs[0].VendaRef)

	// Diário invisível para outra empresa
	_, err = svc.Movimentacoes(ctx, uuid.New(), turnoID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
