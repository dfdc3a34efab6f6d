// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	QuestionsReceived  = expvar.NewInt("questions_received")
	PromptCacheHits    = expvar.NewInt("prompt_cache_hits")
	SQLCacheHits       = expvar.NewInt("sql_cache_hits")
	JobsCreated        = expvar.NewInt("jobs_created")
	JobsCompleted      = expvar.NewInt("jobs_completed")
	JobsFailed         = expvar.NewInt("jobs_failed")
	Abstentions        = expvar.NewInt("abstentions")
	ExecutorCalls      = expvar.NewInt("executor_calls")
	RelayConnections   = expvar.NewInt("relay_connections")
	RelayUpdatesSent   = expvar.NewInt("relay_updates_sent")
	FanoutPublished    = expvar.NewInt("fanout_published")
	FanoutSubscribed   = expvar.NewInt("fanout_updates_received")
)
