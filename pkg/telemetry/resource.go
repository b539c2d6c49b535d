package telemetry

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/polisai/polis-bindings/pkg/domain"
)

const defaultServiceName = "unknown_service"

// Cloud Foundry resource attribute keys.
const (
	attrAppID         = attribute.Key("cloudfoundry.app.id")
	attrAppName       = attribute.Key("cloudfoundry.app.name")
	attrAppInstanceID = attribute.Key("cloudfoundry.app.instance.id")
	attrSpaceID       = attribute.Key("cloudfoundry.space.id")
	attrSpaceName     = attribute.Key("cloudfoundry.space.name")
	attrOrgID         = attribute.Key("cloudfoundry.org.id")
	attrOrgName       = attribute.Key("cloudfoundry.org.name")
	attrInstanceID    = attribute.Key("service.instance.id")
)

// newResource describes the application. The service name falls back to the
// application name; the instance id falls back to a random UUID.
func newResource(ctx context.Context, serviceName string, app domain.Application) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = app.Name
	}
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	instanceID := app.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		attrInstanceID.String(instanceID),
	}
	for key, value := range map[attribute.Key]string{
		attrAppID:     app.ID,
		attrAppName:   app.Name,
		attrSpaceID:   app.SpaceID,
		attrSpaceName: app.SpaceName,
		attrOrgID:     app.OrgID,
		attrOrgName:   app.Organization,
	} {
		if value != "" {
			attrs = append(attrs, key.String(value))
		}
	}
	if app.HasIndex {
		attrs = append(attrs, attrAppInstanceID.String(strconv.Itoa(app.InstanceIndex)))
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	return res, nil
}
