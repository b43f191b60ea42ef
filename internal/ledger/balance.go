// Package ledger concentra a aritmética de conferência do caixa e a taxonomia
// de erros do ciclo de vida do turno. Funções puras: sem I/O, determinísticas,
// usadas tanto na exibição de saldo ao vivo quanto no fechamento.
package ledger

import "github.com/shopspring/decimal"

// SaldoEsperado deriva o valor que deveria estar na gaveta a partir dos
// acumuladores do turno:
//
//	abertura + vendas + suprimentos - sangrias
//
// Como os acumuladores são mantidos transacionalmente junto com cada
// movimentação, não há releitura do diário aqui. A auditoria (service) pode
// recomputar a partir das movimentações cruas e exigir igualdade.
func SaldoEsperado(abertura, vendas, suprimentos, sangrias decimal.Decimal) decimal.Decimal {
	return abertura.Add(vendas).Add(suprimentos).Sub(sangrias)
}

// Diferenca é contado menos esperado. Pode ser negativa (falta), positiva
// (sobra) ou exatamente zero.
func Diferenca(contado, esperado decimal.Decimal) decimal.Decimal {
	return contado.Sub(esperado)
}

// Classificacao qualifica a diferença apenas para exibição; não é persistida.
type Classificacao string

const (
	Equilibrado Classificacao = "equilibrado"
	Sobra       Classificacao = "sobra"
	Falta       Classificacao = "falta"
)

// Classificar mapeia o sinal da diferença para a classificação de exibição.
func Classificar(diferenca decimal.Decimal) Classificacao {
	switch diferenca.Sign() {
	case 1:
		return Sobra
	case -1:
		return Falta
	default:
		return Equilibrado
	}
}
