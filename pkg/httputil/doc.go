// Package httputil provides HTTP helpers for JSON responses, request parsing
// and the common middleware stack.
//
// Error responses share one body shape:
//
//	{"error": "forbidden"}
//
// Handlers parse input with:
//
//	var req createRoleRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400 already written
//	}
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
package httputil
