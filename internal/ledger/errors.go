package ledger

import "errors"

// Erros sentinela do ciclo de vida do turno. Todos são desfechos terminais
// visíveis ao chamador — nenhum é repetido internamente. Usar com errors.Is.
var (
	// ErrTurnoJaAberto: tentativa de abrir turno com outro ainda aberto no
	// mesmo caixa. O chamador resolve buscando o turno aberto existente.
	ErrTurnoJaAberto = errors.New("já existe um turno aberto para este caixa")

	// ErrTurnoNaoAberto: movimentação ou fechamento sobre turno inexistente,
	// de outra empresa ou já fechado. Os três casos são deliberadamente
	// indistinguíveis para não criar oráculo de enumeração entre tenants.
	ErrTurnoNaoAberto = errors.New("turno inexistente ou já fechado")

	// ErrValorInvalido: valor não positivo em movimentação, ou abertura /
	// contagem negativa.
	ErrValorInvalido = errors.New("valor monetário inválido")

	// ErrConflitoGravacao: a escrita atômica foi rejeitada pela constraint do
	// banco no último instante (corrida perdida). Seguro repetir após
	// reconsultar o estado atual.
	ErrConflitoGravacao = errors.New("conflito de gravação, consulte o estado atual e tente novamente")
)

// Retryable reporta se o chamador pode repetir a operação automaticamente,
// sem nova intervenção humana.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflitoGravacao)
}
