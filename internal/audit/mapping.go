package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP request.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseRoute returns action and resource for an HTTP method and route path
// (e.g. POST /admin/voucher -> create/voucher, GET /dev/otp/{callerId} -> get/otp).
// Action is derived from the method; resource is the last literal path segment.
func ParseRoute(method, path string) ActionResource {
	return ActionResource{Action: methodToAction(method), Resource: pathToResource(path)}
}

func pathToResource(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		s := segments[i]
		if s == "" || strings.HasPrefix(s, "{") || s == "*" {
			continue
		}
		return strings.ToLower(s)
	}
	return "unknown"
}

func methodToAction(method string) string {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		return "get"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	case "":
		return "unknown"
	default:
		return strings.ToLower(method)
	}
}
