// internal/gateway/httpapi/schemas.go
package httpapi

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"notification-engine/internal/store"
)

var submitSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"recipientId": map[string]interface{}{"type": "string", "minLength": 1},
		"category":    map[string]interface{}{"type": "string"},
		"priority": map[string]interface{}{
			"type": "string",
			"enum": []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"},
		},
		"title":             map[string]interface{}{"type": "string", "minLength": 1},
		"body":              map[string]interface{}{"type": "string"},
		"relatedEntityType": map[string]interface{}{"type": "string"},
		"relatedEntityId":   map[string]interface{}{"type": "string"},
	},
	"required":             []string{"recipientId", "priority", "title"},
	"additionalProperties": false,
}

var preferencePatchSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"inAppEnabled": map[string]interface{}{"type": "boolean"},
		"emailEnabled": map[string]interface{}{"type": "boolean"},
		"smsEnabled":   map[string]interface{}{"type": "boolean"},
		"pushEnabled":  map[string]interface{}{"type": "boolean"},
		"quietHoursStart": map[string]interface{}{
			"type":    "string",
			"pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$",
		},
		"quietHoursEnd": map[string]interface{}{
			"type":    "string",
			"pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$",
		},
		"clearQuietHours": map[string]interface{}{"type": "boolean"},
		"digestDaily":     map[string]interface{}{"type": "boolean"},
		"digestWeekly":    map[string]interface{}{"type": "boolean"},
		"consentGiven":    map[string]interface{}{"type": "boolean"},
	},
	"additionalProperties": false,
}

// decodeAndValidate reads the request body and checks it against schema.
// The raw body is returned for a second, typed unmarshal.
func decodeAndValidate(r *http.Request, schema map[string]interface{}) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("request validation failed: %s", strings.Join(errs, "; "))
	}
	return body, nil
}

func isNotFound(err error) bool {
	return stderrors.Is(err, store.ErrNotFound)
}
