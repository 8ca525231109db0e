package observability

// Metric names shared across components. Names passed to Registry.Timing
// are prefixes: the registry appends _duration_ms and _count.
const (
	HTTPRequestsTotal = "http_requests_total"
	HTTPRequestTiming = "http_request"
	HTTPResponseSize  = "http_response_size_bytes"

	DBQueriesTotal             = "db_queries_total"
	DBQueryTiming              = "db_query"
	DBErrorsTotal              = "db_errors_total"
	DBConnectionsActive        = "db_connections_active"
	DBHealthCheck              = "db_health_check"
	DBHealthCheckFailuresTotal = "db_health_check_failures_total"

	RedisOperationsTotal      = "redis_operations_total"
	RedisOperationTiming      = "redis_operation"
	RedisOperationErrorsTotal = "redis_operation_errors_total"
	RedisCacheHits            = "redis_cache_hits_total"
	RedisCacheMisses          = "redis_cache_misses_total"
	RedisPing                 = "redis_ping"
	RedisPingFailuresTotal    = "redis_ping_failures_total"

	CacheHitsTotal   = "cache_hits_total"
	CacheMissesTotal = "cache_misses_total"

	RateLimitRejectionsTotal = "rate_limit_rejections_total"
	ErrorsTotal              = "errors_total"

	AIRequestsTotal  = "ai_requests_total"
	AIRequestTiming  = "ai_request"
	AITokensUsed     = "ai_tokens_used_total"
	AIFallbacksTotal = "ai_fallbacks_total"

	AnalysisJobsDropped = "analysis_jobs_dropped_total"
	AnalysisJobsFailed  = "analysis_jobs_failed_total"

	MessagesPublished    = "messages_published_total"
	MessagePublishErrors = "message_publish_errors_total"

	WatchlistsCreated = "watchlists_created_total"
	TermsAdded        = "terms_added_total"
	EventsSimulated   = "events_simulated_total"
)
