package httputil

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackContentType is served to clients that ask for it in Accept.
const MsgpackContentType = "application/msgpack"

// WriteJSON writes v as a JSON response with the given status. Values that
// cannot be encoded (NaN, channels) produce a 500 instead of an empty body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(map[string]string{"error": "encoding response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

// WriteError writes {"error": msg} with the given status.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// WantsMsgpack reports whether the request's Accept header names msgpack.
func WantsMsgpack(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		switch strings.ToLower(mt) {
		case MsgpackContentType, "application/x-msgpack", "application/vnd.msgpack":
			return true
		}
	}
	return false
}

// Write encodes v as msgpack when the client asks for it and as JSON
// otherwise.
func Write(w http.ResponseWriter, r *http.Request, status int, v any) {
	if !WantsMsgpack(r) {
		WriteJSON(w, status, v)
		return
	}
	data, err := msgpack.Marshal(v)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "encoding response: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", MsgpackContentType)
	w.WriteHeader(status)
	w.Write(data)
}
