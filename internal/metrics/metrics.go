package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Layout metrics
	LayoutTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layout_ticks_total",
			Help: "Total number of simulation ticks performed",
		},
	)

	LayoutTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "layout_tick_duration_seconds",
			Help:    "Duration of one simulation tick in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	OctreeBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "octree_build_duration_seconds",
			Help:    "Duration of building the spatial index for one tick",
			Buckets: []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1},
		},
	)

	OctreeNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "octree_nodes",
			Help: "Number of octree nodes built by the latest tick",
		},
	)

	LayoutBodies = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "layout_bodies",
			Help: "Number of bodies on the active level by state",
		},
		[]string{"state"}, // state: moving, halted
	)

	LayoutMaxSpeed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_max_speed",
			Help: "Largest body speed seen during the latest tick",
		},
	)

	LevelTransitionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layout_level_transitions_total",
			Help: "Total number of refinements to a finer level",
		},
	)

	LayoutRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layout_runs_total",
			Help: "Total number of layout runs by outcome",
		},
		[]string{"status"}, // status: started, completed, failed
	)

	LayoutDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_levels_pending",
			Help: "Number of finer levels still waiting to be refined",
		},
	)

	// Coarsening metrics
	CoarsenLevels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coarsen_levels",
			Help: "Number of levels built by the latest coarsening",
		},
	)

	CoarsenDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coarsen_duration_seconds",
			Help:    "Duration of building the level hierarchy in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Graph metrics
	GraphNodesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graph_nodes_total",
			Help: "Number of nodes in the loaded graph",
		},
	)

	GraphEdgesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graph_edges_total",
			Help: "Number of edges in the loaded graph",
		},
	)

	// Store metrics
	GraphsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphs_stored",
			Help: "Number of graphs in the configured store",
		},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of graph store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operation_errors_total",
			Help: "Total number of graph store errors",
		},
		[]string{"backend", "operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of times a circuit breaker opened",
		},
		[]string{"name"},
	)

	// Frame cache metrics
	FrameCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "frame_cache_hits_total",
			Help: "Total number of encoded frames served from cache",
		},
	)

	FrameCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "frame_cache_misses_total",
			Help: "Total number of frames that had to be encoded",
		},
	)

	FrameCacheItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "frame_cache_items",
			Help: "Number of encoded frames in cache",
		},
	)

	// API request metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	MetricsCollectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_collection_errors_total",
			Help: "Total number of errors during metrics collection",
		},
		[]string{"collector"},
	)

	// Outgoing HTTP metrics
	HTTPClientRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_client_requests_total",
			Help: "Total number of outgoing HTTP attempts by outcome",
		},
		[]string{"outcome"}, // outcome: success, retry, error
	)

	HTTPClientRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "http_client_retries_total",
			Help: "Total number of outgoing HTTP retries",
		},
	)

	HTTPClientRetryAfterWaits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "http_client_retry_after_wait_seconds",
			Help:    "Waits imposed by Retry-After headers",
			Buckets: []float64{.1, .5, 1, 2, 5, 10, 30},
		},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of frames sent over WebSocket",
		},
	)

	WebSocketMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Total number of frames dropped for slow clients",
		},
	)
)
