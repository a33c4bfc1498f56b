// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/antonioacampos/letterbesdbackend/internal/logging"
	"github.com/antonioacampos/letterbesdbackend/internal/models"
	"github.com/antonioacampos/letterbesdbackend/internal/validation"
)

// sanitizeLogValue replaces control characters so user-supplied strings
// cannot forge log entries.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// usernameParam carries the path parameter through struct validation so
// the same tagged rules apply as everywhere else.
type usernameParam struct {
	Username string `validate:"required,lbxd_username"`
}

// validUsername blocks path tricks and oversized input before any source
// is contacted.
func validUsername(username string) bool {
	return validation.ValidateStruct(usernameParam{Username: username}) == nil
}

// respondJSON sends the envelope with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError sends an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().
			Str("code", sanitizeLogValue(code)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}
