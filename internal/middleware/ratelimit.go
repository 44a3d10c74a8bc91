package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/hitoshi/ghlogin/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	RequestsPerMinute int // プロセス全体のインバウンドリクエスト上限（req/min）
	Burst             int // バーストサイズ
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerMinute: 300,
		Burst:             50,
	}
}

// RateLimitRecorder はレート制限による拒否のメトリクス記録インターフェース。
type RateLimitRecorder interface {
	RecordRateLimited()
}

// RateLimiter はプロセス全体で共有される単一のトークンバケット。
// ユーザー単位ではなくグローバルな流入量を制限する。永続化層には依存せず、
// トークンは設定レートで連続的に補充される。
type RateLimiter struct {
	limiter *rate.Limiter
	rate    rate.Limit
	metrics RateLimitRecorder
}

// NewRateLimiter は新しいRateLimiterを生成する。metricsはnilでもよい。
func NewRateLimiter(config RateLimiterConfig, metrics RateLimitRecorder) *RateLimiter {
	r := rate.Limit(float64(config.RequestsPerMinute) / 60.0)
	return &RateLimiter{
		limiter: rate.NewLimiter(r, config.Burst),
		rate:    r,
		metrics: metrics,
	}
}

// Allow は現在のリクエストがクォータ内かどうかを同期的に判定する。
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Middleware はグローバルレート制限ミドルウェアを返す。
// クォータ超過時は他のいかなる処理よりも先に429を返す。
func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow() {
				rl.writeRateLimitResponse(w)
				slog.Warn("rate limit exceeded",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				if rl.metrics != nil {
					rl.metrics.RecordRateLimited()
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func (rl *RateLimiter) writeRateLimitResponse(w http.ResponseWriter) {
	retryAfterSec := int(math.Ceil(1.0 / float64(rl.rate)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
