package binding

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/polisai/polis-bindings/pkg/domain"
)

// ApplicationEnv holds the platform description of the running application.
const ApplicationEnv = "VCAP_APPLICATION"

type applicationDocument struct {
	Name          string `json:"application_name"`
	ID            string `json:"application_id"`
	SpaceName     string `json:"space_name"`
	SpaceID       string `json:"space_id"`
	Organization  string `json:"organization_name"`
	OrgID         string `json:"organization_id"`
	InstanceID    string `json:"instance_id"`
	InstanceIndex *int   `json:"instance_index"`
}

// ApplicationFromEnv reads VCAP_APPLICATION. A missing or blank variable
// yields the zero Application.
func ApplicationFromEnv(lookup func(string) (string, bool)) (domain.Application, error) {
	blob, ok := lookup(ApplicationEnv)
	if !ok || strings.TrimSpace(blob) == "" {
		return domain.Application{}, nil
	}
	return ParseApplication([]byte(blob))
}

// ParseApplication decodes a VCAP_APPLICATION document. Unknown fields are
// ignored.
func ParseApplication(data []byte) (domain.Application, error) {
	var doc applicationDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Application{}, fmt.Errorf("decode %s: %w", ApplicationEnv, err)
	}

	app := domain.Application{
		Name:         doc.Name,
		ID:           doc.ID,
		SpaceName:    doc.SpaceName,
		SpaceID:      doc.SpaceID,
		Organization: doc.Organization,
		OrgID:        doc.OrgID,
		InstanceID:   doc.InstanceID,
	}
	if doc.InstanceIndex != nil {
		app.InstanceIndex = *doc.InstanceIndex
		app.HasIndex = true
	}
	return app, nil
}
