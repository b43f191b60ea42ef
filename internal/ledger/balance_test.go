package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestSaldoEsperado(t *testing.T) {
	tests := []struct {
		name                                     string
		abertura, vendas, suprimentos, sangrias string
		want                                     string
	}{
		{"cenário de referência", "100.00", "50.00", "20.00", "30.00", "140.00"},
		{"turno sem movimentações", "100.00", "0", "0", "0", "100.00"},
		{"abertura zero", "0", "10.50", "0", "0", "10.50"},
		{"sangria maior que vendas", "50.00", "10.00", "0", "70.00", "-10.00"},
		{"centavos não drifta", "0.10", "0.20", "0.30", "0.40", "0.20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SaldoEsperado(d(tt.abertura), d(tt.vendas), d(tt.suprimentos), d(tt.sangrias))
			assert.True(t, got.Equal(d(tt.want)), "esperado %s, obtido %s", tt.want, got)
		})
	}
}

func TestDiferencaSinal(t *testing.T) {
	esperado := d("140.00")

	sobra := Diferenca(d("145.00"), esperado)
	require.True(t, sobra.Equal(d("5.00")))
	assert.Equal(t, Sobra, Classificar(sobra))

	falta := Diferenca(d("130.00"), esperado)
	require.True(t, falta.Equal(d("-10.00")))
	assert.Equal(t, Falta, Classificar(falta))

	zero := Diferenca(d("140.00"), esperado)
	require.True(t, zero.IsZero())
	assert.Equal(t, Equilibrado, Classificar(zero))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrConflitoGravacao))
	assert.False(t, Retryable(ErrTurnoJaAberto))
	assert.False(t, Retryable(ErrTurnoNaoAberto))
	assert.False(t, Retryable(ErrValorInvalido))
}
