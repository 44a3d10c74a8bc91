// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はログインフローとセッションライフサイクルのメトリクスを収集する。
// auth.MetricsRecorderとsession.MetricsRecorderの両方を満たす。
type Collector struct {
	loginSuccess    prometheus.Counter
	loginFailure    *prometheus.CounterVec
	userCreated     prometheus.Counter
	sessionCreated  prometheus.Counter
	sessionRenewed  prometheus.Counter
	sessionExpired  prometheus.Counter
	rateLimited     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghlogin_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghlogin_login_failure_total",
			Help: "ログイン失敗の合計数（失敗ステージ別）",
		}, []string{"stage"}),
		userCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghlogin_user_created_total",
			Help: "初回ログインで作成されたユーザーの合計数",
		}),
		sessionCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghlogin_session_created_total",
			Help: "発行されたセッションの合計数",
		}),
		sessionRenewed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghlogin_session_renewed_total",
			Help: "スライディング延長されたセッションの合計数",
		}),
		sessionExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghlogin_session_expired_total",
			Help: "検証時に期限切れとして削除されたセッションの合計数",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghlogin_rate_limited_total",
			Help: "レート制限で拒否されたリクエストの合計数",
		}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFailure,
		c.userCreated,
		c.sessionCreated,
		c.sessionRenewed,
		c.sessionExpired,
		c.rateLimited,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を失敗ステージ付きで記録する。
func (c *Collector) RecordLoginFailure(stage string) {
	c.loginFailure.WithLabelValues(stage).Inc()
}

// RecordUserCreated は新規ユーザー作成を記録する。
func (c *Collector) RecordUserCreated() {
	c.userCreated.Inc()
}

// RecordSessionCreated はセッション発行を記録する。
func (c *Collector) RecordSessionCreated() {
	c.sessionCreated.Inc()
}

// RecordSessionRenewed はセッション延長を記録する。
func (c *Collector) RecordSessionRenewed() {
	c.sessionRenewed.Inc()
}

// RecordSessionExpired は期限切れセッションの削除を記録する。
func (c *Collector) RecordSessionExpired() {
	c.sessionExpired.Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
