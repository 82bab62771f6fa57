package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(conversationsStarted, conversationsEnded, conversationsSwept, messagesAppended)
}

var conversationsStarted = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "conversations_started_total",
		Help: "Total number of conversations created.",
	},
)

var conversationsEnded = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "conversations_ended_total",
		Help: "Total number of conversations ended explicitly.",
	},
)

var conversationsSwept = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "conversations_swept_total",
		Help: "Total number of orphaned conversation keys removed by the sweeper.",
	},
)

var messagesAppended = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "conversation_messages_total",
		Help: "Messages appended to conversations, labeled by author type.",
	},
	[]string{"type"}, // 'user', 'bot'
)

func IncConversationStarted() { conversationsStarted.Inc() }

func IncConversationEnded() { conversationsEnded.Inc() }

func AddConversationsSwept(n int) { conversationsSwept.Add(float64(n)) }

func IncMessageAppended(msgType string) {
	messagesAppended.WithLabelValues(norm(msgType)).Inc()
}
