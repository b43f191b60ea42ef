// Package apierror define os envelopes de erro retornados pela API.
// Toda resposta 4xx/5xx passa por aqui, para que nenhum detalhe interno
// (stack trace, erro de driver) vaze para o cliente.
package apierror

// APIError é o envelope canônico de erro.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError agrega falhas de validação por campo.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Erro de validação", Fields: fields}
}
