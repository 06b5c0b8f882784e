package metricspush

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/featureflags/internal/config"
	obstracing "github.com/smallbiznis/featureflags/internal/observability/tracing"
	collectormetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
)

const (
	ExporterRemoteWrite = "remote_write"
	ExporterPushgateway = "pushgateway"
	ExporterOTLP        = "otlp"

	defaultPushTimeout = 5 * time.Second

	// GroupingDeployment names the deployment in the Pushgateway group. It must
	// not collide with a gauge label such as the flag environment.
	GroupingDeployment = "deployment"
)

// Pusher sends one snapshot of gatherer to a collector.
type Pusher interface {
	Push(ctx context.Context, gatherer prometheus.Gatherer) error
}

// NewPusher builds the configured pusher. A bad configuration disables the
// push with a warning; it never stops the service from starting.
func NewPusher(cfg config.Config, log *zap.Logger) Pusher {
	log = log.Named("metricspush")
	if !cfg.Metrics.Enabled {
		return nil
	}

	exporter := strings.ToLower(strings.TrimSpace(cfg.Metrics.Exporter))
	endpoint := strings.TrimSpace(cfg.Metrics.Endpoint)
	if endpoint == "" {
		log.Warn("inventory push disabled", zap.Error(errors.New("METRICS_PUSH_ENDPOINT is required")))
		return nil
	}

	switch exporter {
	case ExporterRemoteWrite, "":
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			log.Warn("inventory push disabled", zap.Error(fmt.Errorf("invalid METRICS_PUSH_ENDPOINT: %w", err)))
			return nil
		}
		return NewRemoteWritePusher(endpoint, cfg.Metrics.AuthToken)
	case ExporterPushgateway:
		return NewPushgatewayPusher(endpoint, cfg.AppName, map[string]string{
			GroupingDeployment: strings.TrimSpace(cfg.Environment),
		})
	case ExporterOTLP:
		pusher, err := NewOTLPPusher(endpoint, cfg.Metrics.AuthToken, otlpResource(cfg.AppName, cfg.AppVersion, cfg.Environment))
		if err != nil {
			log.Warn("inventory push disabled", zap.Error(err))
			return nil
		}
		return pusher
	default:
		log.Warn("inventory push disabled", zap.String("exporter", exporter))
		return nil
	}
}

// RemoteWritePusher sends samples to a Prometheus remote_write endpoint.
type RemoteWritePusher struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
	now        func() time.Time
}

func NewRemoteWritePusher(endpoint, authToken string) *RemoteWritePusher {
	return &RemoteWritePusher{
		endpoint:  endpoint,
		authToken: strings.TrimSpace(authToken),
		httpClient: obstracing.WrapHTTPClient(&http.Client{
			Timeout: defaultPushTimeout,
		}),
		now: time.Now,
	}
}

func (p *RemoteWritePusher) Push(ctx context.Context, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return err
	}
	series := buildRemoteWriteSeries(families, p.now().UnixMilli())
	if len(series) == 0 {
		return nil
	}

	payload, err := proto.Marshal(protoadapt.MessageV2Of(&prompb.WriteRequest{Timeseries: series}))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(snappy.Encode(nil, payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if p.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.authToken)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("remote write returned %s", resp.Status)
	}
	return nil
}

// PushgatewayPusher replaces the job's group on a Prometheus Pushgateway.
type PushgatewayPusher struct {
	endpoint string
	job      string
	grouping map[string]string
}

func NewPushgatewayPusher(endpoint, job string, grouping map[string]string) *PushgatewayPusher {
	return &PushgatewayPusher{
		endpoint: endpoint,
		job:      strings.TrimSpace(job),
		grouping: grouping,
	}
}

func (p *PushgatewayPusher) Push(ctx context.Context, gatherer prometheus.Gatherer) error {
	if p.job == "" {
		return errors.New("pushgateway job is required")
	}

	pusher := push.New(p.endpoint, p.job).Gatherer(gatherer)
	for key, value := range p.grouping {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		pusher = pusher.Grouping(key, value)
	}
	return pusher.PushContext(ctx)
}

// OTLPPusher exports gauges over the OTLP metrics gRPC service.
type OTLPPusher struct {
	conn      *grpc.ClientConn
	client    collectormetricspb.MetricsServiceClient
	authToken string
	resource  *resourcepb.Resource
	now       func() time.Time
}

// NewOTLPPusher dials lazily; endpoint is host:port or a grpc(s)/http(s) URL.
func NewOTLPPusher(endpoint, authToken string, resource *resourcepb.Resource, opts ...grpc.DialOption) (*OTLPPusher, error) {
	target, secure, err := parseOTLPEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	creds := insecure.NewCredentials()
	if secure {
		creds = credentials.NewClientTLSFromCert(nil, "")
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &OTLPPusher{
		conn:      conn,
		client:    collectormetricspb.NewMetricsServiceClient(conn),
		authToken: strings.TrimSpace(authToken),
		resource:  resource,
		now:       time.Now,
	}, nil
}

func (p *OTLPPusher) Push(ctx context.Context, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return err
	}
	metrics := buildOTLPMetrics(families, uint64(p.now().UnixNano()))
	if len(metrics) == 0 {
		return nil
	}

	if p.authToken != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+p.authToken)
	}
	_, err = p.client.Export(ctx, &collectormetricspb.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricspb.ResourceMetrics{{
			Resource: p.resource,
			ScopeMetrics: []*metricspb.ScopeMetrics{{
				Scope:   &commonpb.InstrumentationScope{Name: obstracing.InstrumentationName + "/metricspush"},
				Metrics: metrics,
			}},
		}},
	})
	return err
}

func (p *OTLPPusher) Close() error {
	return p.conn.Close()
}

// parseOTLPEndpoint strips http(s) and grpc(s) schemes down to host:port.
// Other schemes are gRPC resolver targets and pass through unchanged.
func parseOTLPEndpoint(endpoint string) (string, bool, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", false, errors.New("otlp endpoint is required")
	}
	scheme, _, found := strings.Cut(endpoint, ":")
	if !found {
		return endpoint, false, nil
	}
	switch strings.ToLower(scheme) {
	case "http", "https", "grpc", "grpcs":
	default:
		return endpoint, false, nil
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid otlp endpoint: %w", err)
	}
	if parsed.Host == "" {
		return "", false, errors.New("otlp endpoint host is required")
	}
	secure := parsed.Scheme == "https" || parsed.Scheme == "grpcs"
	return parsed.Host, secure, nil
}
