package infra

import (
	"fmt"

	"github.com/agenciabaepi/AgilizaOS-sub003/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase estabelece a conexão GORM sobre pgx, roda AutoMigrate para as
// tabelas do ledger e aplica os patches de SQL que o GORM não expressa —
// em particular o índice único parcial que sustenta o invariante de um único
// turno aberto por caixa.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations cria/atualiza o schema. Também usada pelos testes de
// integração contra Postgres descartável.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Empresa{},
		&model.Usuario{},
		&model.Caixa{},
		&model.Turno{},
		&model.Movimentacao{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches roda DDL idempotente que o AutoMigrate não cobre.
// Cada statement usa IF NOT EXISTS, então reexecutar em schema já corrigido
// é no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// Invariante central: no máximo um turno aberto por caixa, decidido
		// pelo banco dentro da transação do INSERT — nunca por
		// check-then-insert em código de aplicação.
		{"índice único parcial de turno aberto", `
CREATE UNIQUE INDEX IF NOT EXISTS uni_turno_aberto_por_caixa
    ON turnos (caixa_id)
    WHERE status = 'aberto'`},
		// Leitura do diário em ordem de lançamento.
		{"índice do diário por turno", `
CREATE INDEX IF NOT EXISTS idx_movimentacoes_turno_registrado
    ON movimentacoes (turno_id, registrado_em)`},
		// Histórico de fechados, mais recentes primeiro.
		{"índice de histórico de fechamentos", `
CREATE INDEX IF NOT EXISTS idx_turnos_fechados
    ON turnos (empresa_id, fechado_em DESC)
    WHERE status = 'fechado'`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
