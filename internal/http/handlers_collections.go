package http

import (
	"fmt"
	"net/http"

	"yeardash/internal/core"
	"yeardash/internal/services"
)

// collectionOf reads {collection} and answers 404 for unknown names.
func collectionOf(w http.ResponseWriter, r *http.Request) (string, bool) {
	collection := r.PathValue("collection")
	if _, ok := services.Decoder(collection); !ok {
		NotFoundError(fmt.Sprintf("unknown collection %q", collection)).Write(w)
		return "", false
	}
	return collection, true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionOf(w, r)
	if !ok {
		return
	}
	items, err := s.views.Collection(r.Context(), IdentityFrom(r.Context()), collection)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, map[string]any{"items": items})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionOf(w, r)
	if !ok {
		return
	}
	id, ok := s.identity(r)
	if !ok {
		UnauthorizedError(core.ErrUnauthenticated.Error()).Write(w)
		return
	}

	fields, ok := s.decodeRecord(w, r, collection)
	if !ok {
		return
	}
	docID, err := s.gateway.Create(r.Context(), id, collection, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, map[string]string{"id": docID})
}

// decodeRecord reads and validates a full record for collection and
// returns its store fields. Failures have been answered when ok is false.
func (s *Server) decodeRecord(w http.ResponseWriter, r *http.Request, collection string) (map[string]any, bool) {
	var (
		dst      any
		toFields func() (map[string]any, error)
	)
	switch collection {
	case core.CollectionGoals:
		req := &GoalRequest{}
		dst = req
		toFields = func() (map[string]any, error) {
			g := req.Goal()
			return g.Fields(), g.Validate()
		}
	case core.CollectionTransactions:
		req := &TransactionRequest{}
		dst = req
		toFields = func() (map[string]any, error) {
			t, err := req.Transaction()
			if err != nil {
				return nil, err
			}
			return t.Fields(), t.Validate()
		}
	case core.CollectionRecaps:
		req := &RecapRequest{}
		dst = req
		toFields = func() (map[string]any, error) {
			rc := req.Recap()
			return rc.Fields(), rc.Validate()
		}
	}
	return s.decodeInto(w, r, dst, toFields)
}

func (s *Server) decodePatch(w http.ResponseWriter, r *http.Request, collection string) (map[string]any, bool) {
	var (
		dst      any
		toFields func() (map[string]any, error)
	)
	switch collection {
	case core.CollectionGoals:
		p := &GoalPatch{}
		dst, toFields = p, p.Fields
	case core.CollectionTransactions:
		p := &TransactionPatch{}
		dst, toFields = p, p.Fields
	case core.CollectionRecaps:
		p := &RecapPatch{}
		dst, toFields = p, p.Fields
	}
	return s.decodeInto(w, r, dst, toFields)
}

func (s *Server) decodeInto(w http.ResponseWriter, r *http.Request, dst any, toFields func() (map[string]any, error)) (map[string]any, bool) {
	if err := DecodeJSON(w, r, dst); err != nil {
		BadRequestError(err.Error()).Write(w)
		return nil, false
	}
	if fields := s.validator.Validate(dst); fields != nil {
		ValidationErrorResponse(fields).Write(w)
		return nil, false
	}
	fields, err := toFields()
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return nil, false
	}
	return fields, true
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionOf(w, r)
	if !ok {
		return
	}
	id, ok := s.identity(r)
	if !ok {
		UnauthorizedError(core.ErrUnauthenticated.Error()).Write(w)
		return
	}

	fields, ok := s.decodePatch(w, r, collection)
	if !ok {
		return
	}
	if err := s.gateway.Update(r.Context(), id, collection, r.PathValue("id"), fields); err != nil {
		writeError(w, r, err)
		return
	}
	NoContent(w)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionOf(w, r)
	if !ok {
		return
	}
	id, ok := s.identity(r)
	if !ok {
		UnauthorizedError(core.ErrUnauthenticated.Error()).Write(w)
		return
	}
	if err := s.gateway.Delete(r.Context(), id, collection, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NoContent(w)
}
