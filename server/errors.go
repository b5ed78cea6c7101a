package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/larchlabs/forge/api"
	"github.com/larchlabs/forge/session"
)

// writeSessionError maps spec §7's error taxonomy to an HTTP status and
// JSON body.
func writeSessionError(c *gin.Context, err error) {
	sessErr, ok := err.(*session.Error)
	if !ok {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
		return
	}

	resp := api.ErrorResponse{Error: sessErr.Error()}
	status := http.StatusInternalServerError

	switch sessErr.Kind {
	case session.SessionNotFound:
		status, resp.Kind = http.StatusNotFound, "SessionNotFound"
	case session.SessionBusy:
		status, resp.Kind = http.StatusConflict, "SessionBusy"
	case session.SessionDuplicate:
		status, resp.Kind = http.StatusConflict, "SessionDuplicate"
	case session.InvalidDialogPos:
		status, resp.Kind = http.StatusBadRequest, "InvalidDialogPos"
		current := sessErr.Current
		resp.Current = &current
	}

	c.JSON(status, resp)
}

// writeFragmentJSONTo encodes one streamed ndjson chunk directly to the
// response writer (matches server/routes_misc.go's streamResponse: one
// JSON value per line, no enclosing array).
func writeFragmentJSONTo(w io.Writer, f api.Fragment) {
	_ = json.NewEncoder(w).Encode(f)
}
