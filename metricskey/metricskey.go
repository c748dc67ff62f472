package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	StatsLLMMessagesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_messages_sent",
		Help:         "stats_llm_messages_sent provides total messages sent to LLM",
		RequiredTags: []string{"model"},
	}

	StatsLLMCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_calls_failed",
		Help:         "stats_llm_calls_failed provides total failed LLM calls",
		RequiredTags: []string{"model"},
	}

	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls to unknown tools",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsMalformed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_malformed",
		Help:         "stats_tool_calls_malformed provides total tool calls with unparseable arguments",
		RequiredTags: []string{"tool"},
	}

	StatsServerConnectsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_server_connects_failed",
		Help:         "stats_server_connects_failed provides total failed tool server connects",
		RequiredTags: []string{"server", "transport"},
	}

	StatsTurnsIterationLimited = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_turns_iteration_limited",
		Help:         "stats_turns_iteration_limited provides total turns terminated by the iteration cap",
		RequiredTags: []string{"model"},
	}
)

// Perf
var (
	PerfChatTurn = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_chat_turn",
		Help:         "perf_chat_turn provides timing of one full chat turn",
		RequiredTags: []string{"model"},
	}

	PerfLLMCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_llm_call",
		Help:         "perf_llm_call provides timing of one model call",
		RequiredTags: []string{"model"},
	}

	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides timing of tool calls",
		RequiredTags: []string{"tool"},
	}

	PerfServerConnect = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_server_connect",
		Help:         "perf_server_connect provides timing of tool server connects",
		RequiredTags: []string{"server"},
	}
)

// Metrics is a list of all metrics published by this package.
var Metrics = []*metrics.Describe{
	&PerfChatTurn,
	&PerfLLMCall,
	&PerfServerConnect,
	&PerfToolCall,
	&StatsLLMCallsFailed,
	&StatsLLMMessagesSent,
	&StatsServerConnectsFailed,
	&StatsToolCallsFailed,
	&StatsToolCallsMalformed,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
	&StatsTurnsIterationLimited,
}
