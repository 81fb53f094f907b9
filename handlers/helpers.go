package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Dosada05/pong-tournaments/brackets"
	"github.com/Dosada05/pong-tournaments/rooms"
	"github.com/Dosada05/pong-tournaments/services"
)

type jsonResponse map[string]interface{}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case err.Error() == "http: request body too large":
			return fmt.Errorf("body must not be larger than %d bytes", maxBytes)
		case errors.As(err, &invalidUnmarshalError):
			panic(err) // Паника, т.к. это ошибка программиста (передан не указатель)
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	if err != nil {
		return err
	}

	return nil
}

func errorResponse(w http.ResponseWriter, r *http.Request, status int, message interface{}) {
	env := jsonResponse{"error": message}
	if err := writeJSON(w, status, env, nil); err != nil {
		slog.Error("failed to write error response", slog.String("path", r.URL.Path), slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	message := "the server encountered a problem and could not process your request"
	errorResponse(w, r, http.StatusInternalServerError, message)
}

func badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func notFoundResponse(w http.ResponseWriter, r *http.Request) {
	message := "the requested resource could not be found"
	errorResponse(w, r, http.StatusNotFound, message)
}

func conflictResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusConflict, message)
}

func unauthorizedResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusUnauthorized, message)
}

func forbiddenResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusForbidden, message)
}

// mapServiceErrorToHTTP преобразует ошибки сервисного слоя в HTTP-ответы
func mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrTournamentNotFound),
		errors.Is(err, services.ErrGameNotFound),
		errors.Is(err, brackets.ErrPlayerNotFound),
		errors.Is(err, brackets.ErrMatchNotFound),
		errors.Is(err, rooms.ErrRoomNotFound):
		notFoundResponse(w, r)

	case errors.Is(err, services.ErrAlreadyInTournament),
		errors.Is(err, brackets.ErrAlreadyRegistered),
		errors.Is(err, brackets.ErrTournamentFull),
		errors.Is(err, brackets.ErrInvalidPhase),
		errors.Is(err, brackets.ErrQuorumNotMet),
		errors.Is(err, rooms.ErrRoomAlreadyTaken):
		conflictResponse(w, r, err.Error())

	case errors.Is(err, services.ErrValidationFailed),
		errors.Is(err, services.ErrTournamentNameLength),
		errors.Is(err, services.ErrChatMessageLength),
		errors.Is(err, services.ErrOpponentRequired),
		errors.Is(err, rooms.ErrInvalidOptions):
		badRequestResponse(w, r, err)

	case errors.Is(err, services.ErrForbiddenOperation),
		errors.Is(err, brackets.ErrSpectatorsNotAllowed):
		forbiddenResponse(w, r, err.Error())

	default:
		serverErrorResponse(w, r, err)
	}
}

// mapServiceErrorToMessage turns a service error into the text of a websocket error frame.
// Unexpected errors are logged and replaced by a generic message.
func mapServiceErrorToMessage(logger *slog.Logger, err error) string {
	switch {
	case errors.Is(err, services.ErrTournamentNotFound),
		errors.Is(err, services.ErrGameNotFound),
		errors.Is(err, services.ErrAlreadyInTournament),
		errors.Is(err, services.ErrValidationFailed),
		errors.Is(err, services.ErrChatMessageLength),
		errors.Is(err, services.ErrPlayerEliminated),
		errors.Is(err, services.ErrPlayerHasLeft),
		errors.Is(err, services.ErrForbiddenOperation),
		errors.Is(err, brackets.ErrInvalidPhase),
		errors.Is(err, brackets.ErrTournamentFull),
		errors.Is(err, brackets.ErrAlreadyRegistered),
		errors.Is(err, brackets.ErrPlayerNotFound),
		errors.Is(err, brackets.ErrQuorumNotMet),
		errors.Is(err, brackets.ErrSpectatorsNotAllowed),
		errors.Is(err, brackets.ErrMatchNotFound),
		errors.Is(err, brackets.ErrMatchNotPending),
		errors.Is(err, rooms.ErrRoomNotFound),
		errors.Is(err, rooms.ErrRoomClosed),
		errors.Is(err, rooms.ErrUnknownIdentity),
		errors.Is(err, rooms.ErrUnknownMessage),
		errors.Is(err, rooms.ErrUnknownCommand),
		errors.Is(err, rooms.ErrResetNotAllowed):
		return err.Error()
	}
	logger.Error("unexpected websocket operation error", slog.Any("error", err))
	return "internal error"
}
