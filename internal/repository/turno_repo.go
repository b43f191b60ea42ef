package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/agenciabaepi/AgilizaOS-sub003/internal/ledger"
	"github.com/agenciabaepi/AgilizaOS-sub003/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TurnoRepository é o gateway de persistência do ledger de turnos.
//
// Os métodos *Tx recebem a transação corrente e são compostos pelo service
// dentro de um único commit (movimentação + acumulador, leitura travada +
// fechamento). Não existe método de update ou delete de movimentações: o
// diário é append-only.
type TurnoRepository interface {
	// DB expõe o handle para o service abrir transações (nil em testes de unidade).
	DB() *gorm.DB

	BuscarOuCriarCaixa(ctx context.Context, empresaID uuid.UUID, nome string) (*model.Caixa, error)
	// BuscarCaixaPorNome retorna (nil, nil) quando o caixa não existe.
	BuscarCaixaPorNome(ctx context.Context, empresaID uuid.UUID, nome string) (*model.Caixa, error)

	CriarTurno(ctx context.Context, t *model.Turno) error
	TurnoAbertoPorCaixa(ctx context.Context, empresaID, caixaID uuid.UUID) (*model.Turno, error)
	BuscarTurno(ctx context.Context, empresaID, turnoID uuid.UUID) (*model.Turno, error)

	// IncrementarAcumuladorTx soma valor ao acumulador do tipo com um UPDATE
	// atômico condicionado a status = 'aberto' e à empresa do chamador.
	// Retorna o número de linhas afetadas: 0 significa turno ausente, fechado
	// ou de outro tenant.
	IncrementarAcumuladorTx(tx *gorm.DB, empresaID, turnoID uuid.UUID, tipo model.TipoMovimentacao, valor decimal.Decimal) (int64, error)
	CriarMovimentacaoTx(tx *gorm.DB, m *model.Movimentacao) error

	// BuscarTurnoAbertoTx carrega o turno com trava de linha (FOR UPDATE),
	// exigindo status = 'aberto' e empresa do chamador.
	BuscarTurnoAbertoTx(tx *gorm.DB, empresaID, turnoID uuid.UUID) (*model.Turno, error)
	FecharTurnoTx(tx *gorm.DB, t *model.Turno) error

	ListarMovimentacoes(ctx context.Context, empresaID, turnoID uuid.UUID) ([]model.Movimentacao, error)
	SomarPorTipo(ctx context.Context, empresaID, turnoID uuid.UUID) (map[model.TipoMovimentacao]decimal.Decimal, error)
	ListarFechados(ctx context.Context, empresaID uuid.UUID, page, limit int) ([]model.Turno, int64, error)
}

type turnoRepo struct{ db *gorm.DB }

func NewTurnoRepository(db *gorm.DB) TurnoRepository { return &turnoRepo{db: db} }

func (r *turnoRepo) DB() *gorm.DB { return r.db }

func (r *turnoRepo) BuscarOuCriarCaixa(ctx context.Context, empresaID uuid.UUID, nome string) (*model.Caixa, error) {
	var c model.Caixa
	err := r.db.WithContext(ctx).
		Where("empresa_id = ? AND nome = ?", empresaID, nome).
		Attrs(model.Caixa{EmpresaID: empresaID, Nome: nome}).
		FirstOrCreate(&c).Error
	if isUniqueViolation(err) {
		// Dois terminais criando o mesmo caixa ao mesmo tempo: o perdedor
		// reconsulta a linha que o vencedor inseriu.
		if err2 := r.db.WithContext(ctx).
			Where("empresa_id = ? AND nome = ?", empresaID, nome).
			First(&c).Error; err2 == nil {
			return &c, nil
		}
		return nil, ledger.ErrConflitoGravacao
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *turnoRepo) BuscarCaixaPorNome(ctx context.Context, empresaID uuid.UUID, nome string) (*model.Caixa, error) {
	var c model.Caixa
	err := r.db.WithContext(ctx).
		Where("empresa_id = ? AND nome = ?", empresaID, nome).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CriarTurno insere o turno em estado aberto. O índice único parcial
// uni_turno_aberto_por_caixa (caixa_id WHERE status = 'aberto') decide a
// corrida entre aberturas simultâneas: o perdedor recebe ErrTurnoJaAberto no
// próprio INSERT, nunca por verificação prévia em código.
func (r *turnoRepo) CriarTurno(ctx context.Context, t *model.Turno) error {
	err := r.db.WithContext(ctx).Create(t).Error
	if isUniqueViolation(err) {
		return ledger.ErrTurnoJaAberto
	}
	return err
}

func (r *turnoRepo) TurnoAbertoPorCaixa(ctx context.Context, empresaID, caixaID uuid.UUID) (*model.Turno, error) {
	var t model.Turno
	err := r.db.WithContext(ctx).
		Where("caixa_id = ? AND empresa_id = ? AND status = ?", caixaID, empresaID, model.TurnoAberto).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *turnoRepo) BuscarTurno(ctx context.Context, empresaID, turnoID uuid.UUID) (*model.Turno, error) {
	var t model.Turno
	err := r.db.WithContext(ctx).
		Where("id = ? AND empresa_id = ?", turnoID, empresaID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// colunaAcumulador mapeia o tipo para a coluna de acumulador correspondente.
// Switch exaustivo: um tipo novo sem coluna própria falha aqui, não em runtime
// silencioso.
func colunaAcumulador(tipo model.TipoMovimentacao) (string, error) {
	switch tipo {
	case model.TipoVenda:
		return "total_vendas", nil
	case model.TipoSangria:
		return "total_sangrias", nil
	case model.TipoSuprimento:
		return "total_suprimentos", nil
	default:
		return "", fmt.Errorf("tipo de movimentação desconhecido: %q", tipo)
	}
}

func (r *turnoRepo) IncrementarAcumuladorTx(tx *gorm.DB, empresaID, turnoID uuid.UUID, tipo model.TipoMovimentacao, valor decimal.Decimal) (int64, error) {
	col, err := colunaAcumulador(tipo)
	if err != nil {
		return 0, err
	}
	res := tx.Model(&model.Turno{}).
		Where("id = ? AND empresa_id = ? AND status = ?", turnoID, empresaID, model.TurnoAberto).
		Update(col, gorm.Expr(col+" + ?", valor))
	return res.RowsAffected, res.Error
}

func (r *turnoRepo) CriarMovimentacaoTx(tx *gorm.DB, m *model.Movimentacao) error {
	return tx.Create(m).Error
}

func (r *turnoRepo) BuscarTurnoAbertoTx(tx *gorm.DB, empresaID, turnoID uuid.UUID) (*model.Turno, error) {
	var t model.Turno
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND empresa_id = ? AND status = ?", turnoID, empresaID, model.TurnoAberto).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ledger.ErrTurnoNaoAberto
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FecharTurnoTx grava o snapshot de fechamento. O guard status = 'aberto'
// protege contra qualquer interleaving que tenha escapado da trava de linha.
func (r *turnoRepo) FecharTurnoTx(tx *gorm.DB, t *model.Turno) error {
	res := tx.Model(&model.Turno{}).
		Where("id = ? AND empresa_id = ? AND status = ?", t.ID, t.EmpresaID, model.TurnoAberto).
		Updates(map[string]interface{}{
			"status":        model.TurnoFechado,
			"fechado_em":    t.FechadoEm,
			"fechado_por":   t.FechadoPor,
			"valor_contado": t.ValorContado,
			"diferenca":     t.Diferenca,
			"observacoes":   t.Observacoes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrConflitoGravacao
	}
	return nil
}

func (r *turnoRepo) ListarMovimentacoes(ctx context.Context, empresaID, turnoID uuid.UUID) ([]model.Movimentacao, error) {
	var movs []model.Movimentacao
	err := r.db.WithContext(ctx).
		Where("turno_id = ? AND empresa_id = ?", turnoID, empresaID).
		Order("registrado_em ASC").
		Find(&movs).Error
	return movs, err
}

func (r *turnoRepo) SomarPorTipo(ctx context.Context, empresaID, turnoID uuid.UUID) (map[model.TipoMovimentacao]decimal.Decimal, error) {
	var rows []struct {
		Tipo  model.TipoMovimentacao
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&model.Movimentacao{}).
		Select("tipo, COALESCE(SUM(valor), 0) AS total").
		Where("turno_id = ? AND empresa_id = ?", turnoID, empresaID).
		Group("tipo").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	somas := map[model.TipoMovimentacao]decimal.Decimal{
		model.TipoVenda:      decimal.Zero,
		model.TipoSangria:    decimal.Zero,
		model.TipoSuprimento: decimal.Zero,
	}
	for _, row := range rows {
		somas[row.Tipo] = row.Total
	}
	return somas, nil
}

func (r *turnoRepo) ListarFechados(ctx context.Context, empresaID uuid.UUID, page, limit int) ([]model.Turno, int64, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Turno{}).
		Where("empresa_id = ? AND status = ?", empresaID, model.TurnoFechado)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var turnos []model.Turno
	err := q.Order("fechado_em DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&turnos).Error
	return turnos, total, err
}

// isUniqueViolation detecta SQLSTATE 23505 (unique_violation) vindo do pgx.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
