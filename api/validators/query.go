package validators

import (
	"net/http"
	"strings"

	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
)

// RequiredQuery returns the trimmed query values for keys, reporting every
// missing key at once.
func RequiredQuery(r *http.Request, keys ...string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	var missing []string
	for _, key := range keys {
		v := strings.TrimSpace(r.URL.Query().Get(key))
		if v == "" {
			missing = append(missing, key)
			continue
		}
		values[key] = v
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing query parameters").WithDetails(map[string]any{"fields": missing})
	}
	return values, nil
}
