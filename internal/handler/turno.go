package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/agenciabaepi/AgilizaOS-sub003/internal/apierror"
	"github.com/agenciabaepi/AgilizaOS-sub003/internal/dto"
	"github.com/agenciabaepi/AgilizaOS-sub003/internal/ledger"
	"github.com/agenciabaepi/AgilizaOS-sub003/internal/middleware"
	"github.com/agenciabaepi/AgilizaOS-sub003/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TurnoHandler struct{ svc service.TurnoService }

func NewTurnoHandler(svc service.TurnoService) *TurnoHandler { return &TurnoHandler{svc: svc} }

// respondErro traduz a taxonomia do ledger para códigos HTTP. Conflitos de
// corrida (ErrConflitoGravacao) carregam retryable=true para o cliente
// repetir sem reintervenção humana; os demais exigem decisão do chamador.
func respondErro(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrValorInvalido):
		c.JSON(http.StatusUnprocessableEntity, apierror.New(ledger.ErrValorInvalido.Error()))
	case errors.Is(err, ledger.ErrTurnoJaAberto):
		c.JSON(http.StatusConflict, apierror.New(ledger.ErrTurnoJaAberto.Error()))
	case errors.Is(err, ledger.ErrTurnoNaoAberto):
		c.JSON(http.StatusConflict, apierror.New(ledger.ErrTurnoNaoAberto.Error()))
	case errors.Is(err, ledger.ErrConflitoGravacao):
		c.JSON(http.StatusConflict, gin.H{"detail": ledger.ErrConflitoGravacao.Error(), "retryable": true})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, apierror.New("turno não encontrado"))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("Erro interno do servidor"))
	}
}

func turnoIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID de turno inválido"))
		return uuid.Nil, false
	}
	return id, true
}

// Abrir godoc
// @Summary Abre um novo turno de caixa
// @Tags turnos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AbrirTurnoRequest true "Dados de abertura"
// @Success 201 {object} dto.TurnoResponse
// @Failure 409 {object} apierror.APIError "Já existe turno aberto neste caixa"
// @Failure 422 {object} apierror.APIError
// @Router /v1/turnos/abrir [post]
func (h *TurnoHandler) Abrir(c *gin.Context) {
	var req dto.AbrirTurnoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)

	resp, err := h.svc.Abrir(c.Request.Context(), claims.EmpresaUUID(), claims.UserUUID(), req)
	if err != nil {
		respondErro(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RegistrarMovimentacao godoc
// @Summary Registra venda, sangria ou suprimento em um turno aberto
// @Tags turnos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID do turno"
// @Param body body dto.MovimentacaoRequest true "Movimentação"
// @Success 201 {object} dto.MovimentacaoResponse
// @Failure 409 {object} apierror.APIError "Turno inexistente ou já fechado"
// @Failure 422 {object} apierror.APIError
// @Router /v1/turnos/{id}/movimentacoes [post]
func (h *TurnoHandler) RegistrarMovimentacao(c *gin.Context) {
	turnoID, ok := turnoIDParam(c)
	if !ok {
		return
	}
	var req dto.MovimentacaoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)

	resp, err := h.svc.RegistrarMovimentacao(c.Request.Context(), claims.EmpresaUUID(), claims.UserUUID(), turnoID, req)
	if err != nil {
		respondErro(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Fechar godoc
// @Summary Fecha o turno e calcula a diferença de conferência
// @Tags turnos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID do turno"
// @Param body body dto.FecharTurnoRequest true "Valor contado e observações"
// @Success 200 {object} dto.TurnoResponse
// @Failure 409 {object} apierror.APIError "Turno inexistente ou já fechado"
// @Failure 422 {object} apierror.APIError
// @Router /v1/turnos/{id}/fechar [post]
func (h *TurnoHandler) Fechar(c *gin.Context) {
	turnoID, ok := turnoIDParam(c)
	if !ok {
		return
	}
	var req dto.FecharTurnoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)

	resp, err := h.svc.Fechar(c.Request.Context(), claims.EmpresaUUID(), claims.UserUUID(), turnoID, req)
	if err != nil {
		respondErro(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TurnoAberto godoc
// @Summary Retorna o turno aberto de um caixa, se houver
// @Tags turnos
// @Produce json
// @Security BearerAuth
// @Param caixa query string true "Nome do caixa"
// @Success 200 {object} dto.TurnoResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/turnos/aberto [get]
func (h *TurnoHandler) TurnoAberto(c *gin.Context) {
	caixa := c.Query("caixa")
	if caixa == "" {
		c.JSON(http.StatusBadRequest, apierror.New("parâmetro caixa é obrigatório"))
		return
	}
	claims := middleware.GetClaims(c)

	resp, err := h.svc.TurnoAberto(c.Request.Context(), claims.EmpresaUUID(), caixa)
	if err != nil {
		respondErro(c, err)
		return
	}
	if resp == nil {
		c.JSON(http.StatusNotFound, apierror.New("nenhum turno aberto neste caixa"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Relatorio godoc
// @Summary Relatório de um turno com saldo esperado derivado no servidor
// @Tags turnos
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID do turno"
// @Success 200 {object} dto.TurnoResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/turnos/{id} [get]
func (h *TurnoHandler) Relatorio(c *gin.Context) {
	turnoID, ok := turnoIDParam(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)

	resp, err := h.svc.Relatorio(c.Request.Context(), claims.EmpresaUUID(), turnoID)
	if err != nil {
		respondErro(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Movimentacoes godoc
// @Summary Diário de movimentações do turno, em ordem de lançamento
// @Tags turnos
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID do turno"
// @Success 200 {array} dto.MovimentacaoResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/turnos/{id}/movimentacoes [get]
func (h *TurnoHandler) Movimentacoes(c *gin.Context) {
	turnoID, ok := turnoIDParam(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)

	resp, err := h.svc.Movimentacoes(c.Request.Context(), claims.EmpresaUUID(), turnoID)
	if err != nil {
		respondErro(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Auditoria godoc
// @Summary Confronta os acumuladores em cache com a soma do diário
// @Tags turnos
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID do turno"
// @Success 200 {object} dto.AuditoriaResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/turnos/{id}/auditoria [get]
func (h *TurnoHandler) Auditoria(c *gin.Context) {
	turnoID, ok := turnoIDParam(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)

	resp, err := h.svc.Auditoria(c.Request.Context(), claims.EmpresaUUID(), turnoID)
	if err != nil {
		respondErro(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Historico godoc
// @Summary Lista paginada de turnos fechados
// @Tags turnos
// @Produce json
// @Security BearerAuth
// @Param page query int false "Página (default 1)"
// @Param limit query int false "Tamanho da página (default 20, máx 100)"
// @Success 200 {object} dto.HistoricoResponse
// @Router /v1/turnos [get]
func (h *TurnoHandler) Historico(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	claims := middleware.GetClaims(c)

	resp, err := h.svc.Historico(c.Request.Context(), claims.EmpresaUUID(), page, limit)
	if err != nil {
		respondErro(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
