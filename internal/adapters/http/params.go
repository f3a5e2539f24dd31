package httpadapter

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"
)

// pathParam binds a simple-style path parameter as declared in openapi.yaml.
func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, r.PathValue(name), &value, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
	})
	if err != nil || strings.TrimSpace(value) == "" {
		writeParamError(w, name, err)
		return "", false
	}
	return strings.TrimSpace(value), true
}

// requiredQueryParam binds a required form-style query parameter.
func requiredQueryParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var value string
	if err := runtime.BindQueryParameter("form", true, true, name, r.URL.Query(), &value); err != nil {
		writeParamError(w, name, err)
		return "", false
	}
	return strings.TrimSpace(value), true
}

func writeParamError(w http.ResponseWriter, name string, err error) {
	msg := fmt.Sprintf("parameter %s is required", name)
	if err != nil {
		msg = fmt.Sprintf("invalid format for parameter %s: %v", name, err)
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
