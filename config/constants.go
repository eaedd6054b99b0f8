package constants

// Application identity
const (
	APP_NAME        = "hostmon"
	APP_DESCRIPTION = "hostmon - local host monitoring dashboard"
	SERVICE_NAME    = "hostmon"
)

// Server defaults
const (
	DEFAULT_LISTEN_ADDR = "127.0.0.1:8003"
	WS_PATH             = "/ws"
	SNAPSHOT_API_PATH   = "/api/snapshot"
	PACKAGES_API_PATH   = "/api/packages"
	HEALTH_PATH         = "/healthz"
	METRICS_PATH        = "/metrics"

	SHUTDOWN_GRACE_SECONDS = 5
	WS_WRITE_WAIT_SECONDS  = 10
)

// Page titles
const (
	TITLE_DEFAULT  = "System Monitor"
	TITLE_EXCHANGE = "Exchange Monitoring System"
)

// Sampling defaults
const (
	DEFAULT_TICK_INTERVAL_MS    = 1000 // one snapshot per second
	DEFAULT_PROVIDER_TIMEOUT_MS = 5000 // bound for shell-backed checks
	DEFAULT_TOP_PROCESSES       = 10
	DEFAULT_LOG_TAIL_LINES      = 10
	DEFAULT_EVENT_COUNT         = 10
	DEFAULT_PACKAGE_LIMIT       = 10
	MAX_SERVICE_CHECKS          = 16 // concurrent service probes per tick
)

// Platform variants
const (
	VARIANT_AUTO     = "auto"
	VARIANT_GENERIC  = "generic"
	VARIANT_WINDOWS  = "windows"
	VARIANT_EXCHANGE = "exchange"
)

// Exchange layout
const (
	EXCHANGE_DETECT_SERVICE = "MSExchangeTransport"
	EXCHANGE_DEFAULT_ROOT   = `C:\Program Files\Microsoft\Exchange Server\V15`
	EXCHANGE_SMTP_SEND_DIR  = "TransportRoles/Logs/ProtocolLog/SmtpSend"
	EXCHANGE_SMTP_RECV_DIR  = "TransportRoles/Logs/ProtocolLog/SmtpReceive"
	SECURITY_LOGON_EVENT_ID = 4624
)

// Placeholders used when a value cannot be read
const (
	NOT_AVAILABLE = "N/A"
	UPTIME_ZERO   = "0h 0m 0s"
	TIME_FORMAT   = "2006-01-02 15:04:05"
	BYTES_PER_KB  = 1024.0
	BYTES_PER_GB  = 1024.0 * 1024.0 * 1024.0
)

// OpenTelemetry
const (
	OTLP_PATH                = "/v1/metrics"
	DEFAULT_OTEL_INTERVAL_MS = 15000
)

// File paths
const (
	CONFIG_DIR_NAME    = "/.hostmon"
	LOG_FILE           = "/tmp/hostmon.log"
	PID_FILE_NAME      = "hostmon.pid"
	DEFAULT_PACKAGE_DB = "/var/lib/dnf/history.sqlite"
)
