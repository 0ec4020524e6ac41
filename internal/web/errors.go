package web

import (
	"errors"
	"net/http"

	"pulsesync/internal/canvas"
	appLog "pulsesync/internal/log"
	"pulsesync/internal/publish"
	"pulsesync/internal/timeedit"
)

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: msg, Details: details}})
}

func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
}

// sourceStatus maps a TimeEdit failure kind to its HTTP status and API code.
func sourceStatus(k timeedit.Kind) (int, string, bool) {
	switch k {
	case timeedit.KindInvalidURL:
		return http.StatusBadRequest, "INVALID_SOURCE_URL", true
	case timeedit.KindUnreachable:
		return http.StatusBadGateway, "SOURCE_UNREACHABLE", true
	case timeedit.KindUpstreamError:
		return http.StatusBadGateway, "SOURCE_ERROR_RESPONSE", true
	case timeedit.KindParseError:
		return http.StatusUnprocessableEntity, "SOURCE_PARSE_ERROR", true
	default:
		return 0, "", false
	}
}

// targetStatus maps a Canvas failure code to its HTTP status and API code.
func targetStatus(c canvas.Code) (int, string, bool) {
	switch c {
	case canvas.CodeConfig:
		return http.StatusInternalServerError, "CONFIG_ERROR", true
	case canvas.CodeUnauthorized:
		return http.StatusUnauthorized, "TARGET_UNAUTHORIZED", true
	case canvas.CodeUnreachable:
		return http.StatusBadGateway, "TARGET_UNREACHABLE", true
	case canvas.CodeUpstreamError, canvas.CodeRejected, canvas.CodeInvalidResponse:
		return http.StatusBadGateway, "TARGET_ERROR_RESPONSE", true
	default:
		return 0, "", false
	}
}

// writeDomainError converts any error returned by the pipeline, the
// publisher or the Canvas client into exactly one envelope.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		teErr *timeedit.Error
		cErr  *canvas.Error
		vErr  *publish.ValidationError
	)

	switch {
	case errors.As(err, &teErr):
		if writeSourceError(w, teErr, "") {
			return
		}

	case errors.As(err, &cErr):
		status, code, ok := targetStatus(cErr.Code)
		if !ok {
			break
		}
		var details map[string]any
		if cErr.HTTPStatus != 0 {
			details = map[string]any{"upstreamStatus": cErr.HTTPStatus}
		}
		writeError(w, status, code, cErr.Message, details)
		return

	case errors.As(err, &vErr):
		details := map[string]any{}
		if vErr.Field != "" {
			details["field"] = vErr.Field
		}
		if vErr.Field != "" && vErr.Field != "contextId" && vErr.Field != "schedule" {
			details["externalId"] = vErr.ExternalID
		}
		if len(details) == 0 {
			details = nil
		}
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", vErr.Message, details)
		return
	}

	appLog.Error("unhandled error", err)
	writeInternalError(w)
}

// writeSourceError writes the envelope for a TimeEdit failure. A non-empty
// rawURL is echoed as details.timeeditUrl. It reports false for an unmapped
// kind.
func writeSourceError(w http.ResponseWriter, teErr *timeedit.Error, rawURL string) bool {
	status, code, ok := sourceStatus(teErr.Kind)
	if !ok {
		return false
	}
	details := map[string]any{}
	if rawURL != "" {
		details["timeeditUrl"] = rawURL
	}
	if teErr.HTTPStatus != 0 {
		details["upstreamStatus"] = teErr.HTTPStatus
	}
	if len(details) == 0 {
		details = nil
	}
	writeError(w, status, code, teErr.Message, details)
	return true
}
