package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DLQFechamentos guarda jobs que não puderam ser publicados, para inspeção
// manual. O fechamento em si já está commitado no banco — a DLQ existe só
// para não perder o snapshot de relatório.
const DLQFechamentos = "dlq:" + QueueFechamentos

// StartWorkerPool lança numWorkers goroutines consumindo a fila de
// fechamentos. Cada goroutine bloqueia em BRPOP — zero CPU quando ociosa.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, i)
	}
	log.Info().Msgf("worker pool iniciado com %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d encerrando", id)
			return
		default:
			// Pop bloqueante — espera até 5s e volta a checar o ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, QueueFechamentos).Result()
			if err != nil {
				continue // timeout ou contexto cancelado
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, result[1])
		}
	}
}

func processJob(ctx context.Context, rdb *redis.Client, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Err(err).Msg("job de fechamento ilegível")
		return
	}
	var snap FechamentoJob
	if err := json.Unmarshal(job.Payload, &snap); err != nil {
		log.Error().Err(err).Msg("payload de fechamento ilegível")
		sendToDLQ(ctx, rdb, raw, "payload ilegível")
		return
	}

	// Publica na lista de relatórios, aparada aos mais recentes.
	pipe := rdb.TxPipeline()
	pipe.LPush(ctx, ReportsFechamentos, job.Payload)
	pipe.LTrim(ctx, ReportsFechamentos, 0, reportsRetencao-1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("turno_id", snap.TurnoID).Msg("falha ao publicar fechamento")
		sendToDLQ(ctx, rdb, raw, err.Error())
		return
	}

	log.Info().
		Str("turno_id", snap.TurnoID).
		Str("caixa_id", snap.CaixaID).
		Str("diferenca", snap.Diferenca.StringFixed(2)).
		Str("classificacao", snap.Classificacao).
		Msg("fechamento publicado")
}

func sendToDLQ(ctx context.Context, rdb *redis.Client, raw, reason string) {
	entry := map[string]string{
		"job":       raw,
		"reason":    reason,
		"failed_at": time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := rdb.LPush(ctx, DLQFechamentos, data).Err(); err != nil {
		log.Error().Err(err).Msg("dlq: falha ao gravar entrada")
		return
	}
	log.Warn().Str("reason", reason).Msg("dlq: job de fechamento movido para dead letter queue")
}
