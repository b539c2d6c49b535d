package config

import "time"

const (
	legacyBindingPrefix = "otel.javaagent.extension.sap.cf.binding."
	bindingPrefix       = "sap.cf.binding."
)

// Backend names as used in the exporter lists.
const (
	BackendCloudLogging = "cloud-logging"
	BackendDynatrace    = "dynatrace"
	BackendPrometheus   = "prometheus"
	BackendNone         = "none"
)

func bindingKey(suffix string) *Property {
	return Key(bindingPrefix+suffix, DeprecatedKey(legacyBindingPrefix+suffix, nil))
}

// Binding discovery settings.
var (
	CloudLoggingLabel = String(bindingKey("cloud-logging.label"), "cloud-logging")
	CloudLoggingTag   = String(bindingKey("cloud-logging.tag"), "Cloud Logging")
	UserProvidedLabel = String(bindingKey("user-provided.label"), "user-provided")

	DynatraceLabel = String(bindingKey("dynatrace.label"), "dynatrace")
	DynatraceTag   = String(bindingKey("dynatrace.tag"), "dynatrace")
	// DynatraceTokenName names the credential that carries the API token.
	DynatraceTokenName      = String(bindingKey("dynatrace.metrics.token-name"), "apitoken")
	DynatracePinCertificate = Bool(Key(bindingPrefix+"dynatrace.pin-certificate", nil), false)

	// CertificateDownloadTimeout bounds the handshake used to fetch a peer
	// certificate for pinning.
	CertificateDownloadTimeout = Duration(Key(bindingPrefix+"certificate.download-timeout", nil), 5*time.Second)
	// CertificateDownloadRetries is the number of extra handshake attempts.
	CertificateDownloadRetries = Int(Key(bindingPrefix+"certificate.download-retries", nil), 0)
)

// SDK level settings.
var (
	ServiceName          = String(Key("otel.service.name", nil), "")
	TracesExporters      = List(Key("otel.traces.exporter", nil), BackendCloudLogging)
	MetricsExporters     = List(Key("otel.metrics.exporter", nil), BackendCloudLogging)
	MetricExportInterval = Duration(Key("otel.metric.export.interval", nil), 60*time.Second)
	PrometheusAddress    = String(Key("otel.exporter.prometheus.address", nil), ":9464")
)

// ExporterSettings groups the per backend exporter settings.
type ExporterSettings struct {
	Compression    Setting[string]
	Timeout        Setting[time.Duration]
	MetricsInclude Setting[[]string]
	MetricsExclude Setting[[]string]
	SpansInclude   Setting[[]string]
	SpansExclude   Setting[[]string]
}

// ExporterSettingsFor declares the exporter settings of backend. Compression
// and timeout fall back to the generic OTLP keys; the name filters fall back
// to the legacy com.sap.otel keys.
func ExporterSettingsFor(backend string) ExporterSettings {
	prefix := "otel.exporter." + backend + "."
	legacy := "com.sap.otel." + backend + "."

	return ExporterSettings{
		Compression: String(Key(prefix+"compression", Key("otel.exporter.otlp.compression", nil)), "gzip"),
		Timeout:     Duration(Key(prefix+"timeout", Key("otel.exporter.otlp.timeout", nil)), 10*time.Second),
		MetricsInclude: List(Key(prefix+"metrics.include.names",
			DeprecatedKey(legacy+"metrics.include.names", nil))),
		MetricsExclude: List(Key(prefix+"metrics.exclude.names",
			DeprecatedKey(legacy+"metrics.exclude.names", nil))),
		SpansInclude: List(Key(prefix+"traces.include.names", nil)),
		SpansExclude: List(Key(prefix+"traces.exclude.names", nil)),
	}
}
