package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/agenciabaepi/AgilizaOS-sub003/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// limiterStore conta requisições por IP em janelas deslizantes. Uma instância
// por ponto de aplicação (login e API geral), cada uma com seu próprio mapa.
type limiterStore struct {
	mu      sync.Mutex
	janelas map[string]*janela
}

type janela struct {
	contagem int
	expira   time.Time
}

func newLimiterStore() *limiterStore {
	s := &limiterStore{janelas: make(map[string]*janela)}
	go s.purgeLoop()
	return s
}

// permite incrementa a contagem do IP e reporta se ainda está dentro do
// limite. Janela expirada reinicia a contagem.
func (s *limiterStore) permite(ip string, limite int, duracao time.Duration) (bool, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	j, ok := s.janelas[ip]
	if !ok || now.After(j.expira) {
		j = &janela{expira: now.Add(duracao)}
		s.janelas[ip] = j
	}
	j.contagem++
	return j.contagem <= limite, j.expira
}

const purgeInterval = 5 * time.Minute

// purgeLoop remove janelas expiradas para que IPs que nunca voltam não
// acumulem memória.
func (s *limiterStore) purgeLoop() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		s.mu.Lock()
		purgadas := 0
		for ip, j := range s.janelas {
			if now.After(j.expira) {
				delete(s.janelas, ip)
				purgadas++
			}
		}
		restantes := len(s.janelas)
		s.mu.Unlock()

		if purgadas > 0 {
			log.Debug().
				Int("janelas_purgadas", purgadas).
				Int("janelas_restantes", restantes).
				Msg("rate limiter: janelas expiradas removidas")
		}
	}
}

var (
	loginLimiter = newLimiterStore()
	apiLimiter   = newLimiterStore()
)

// LoginRateLimiter limita tentativas de login a 20 por minuto por IP,
// independente do sucesso. Protege o bcrypt de enumeração de senhas.
func LoginRateLimiter() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, _ := loginLimiter.permite(c.ClientIP(), 20, time.Minute)
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Muitas tentativas de login. Tente novamente em 1 minuto."))
			return
		}
		c.Next()
	}
}

// RateLimiter aplica um limite geral de requisições por IP sobre toda a API.
func RateLimiter(limite int, duracao time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, expira := apiLimiter.permite(c.ClientIP(), limite, duracao)
		if !ok {
			c.Header("Retry-After", expira.Format(time.RFC1123))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Muitas requisições. Tente novamente em instantes."))
			return
		}
		c.Next()
	}
}
