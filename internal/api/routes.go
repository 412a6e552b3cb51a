package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/v1/about"
	MetricsRoute     = "/metrics"

	TokenRoute        = "/oauth/token"
	ServiceTokenRoute = "/oauth/token/services/{serviceId}"
	AppKeyRoute       = "/oauth/appkey"
	VerificationRoute = "/oauth/verification"

	StatisticsRoute     = "/data/statistics"
	UserStatisticsRoute = "/services/{serviceId}/users/statistics"

	AdminParent           = "/v1/admin/"
	ListAuditsRoute       = AdminParent + "audits"
	ListActiveTokensRoute = AdminParent + "tokens"

	TaskParent       = AdminParent + "tasks/"
	ListTasksRoute   = TaskParent
	TriggerTaskRoute = TaskParent + "{name}/trigger"
	LogsForTaskRoute = TaskParent + "{name}/logs"
)
