package http

import (
	"net/http"

	"finansheet/internal/log"
)

func (s *Server) mutationFailed(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.appMetrics.failedMutations.Add(1)
	s.fail(w, r, op, err)
}

func (s *Server) mutated() {
	s.appMetrics.mutations.Add(1)
}

func (s *Server) handleCreateCommitment(w http.ResponseWriter, r *http.Request) {
	var req CreateCommitmentRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.mutationFailed(w, r, log.OpCreate, err)
		return
	}
	c, first, err := req.ToCommitment()
	if err != nil {
		s.mutationFailed(w, r, log.OpCreate, err)
		return
	}
	created, err := s.commitments.CreateCommitment(r.Context(), c, first)
	if err != nil {
		s.mutationFailed(w, r, log.OpCreate, err)
		return
	}
	s.mutated()
	NewJSONResponse().Status(http.StatusCreated).Body(NewCommitmentView(created)).Write(w)
}

func (s *Server) handleDeleteCommitment(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.mutationFailed(w, r, log.OpDelete, err)
		return
	}
	if err := s.commitments.Delete(r.Context(), id); err != nil {
		s.mutationFailed(w, r, log.OpDelete, err)
		return
	}
	s.mutated()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleAddTerm(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.mutationFailed(w, r, log.OpUpdate, err)
		return
	}
	var req TermRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.mutationFailed(w, r, log.OpUpdate, err)
		return
	}
	t, err := req.ToTerm()
	if err != nil {
		s.mutationFailed(w, r, log.OpUpdate, err)
		return
	}
	added, err := s.commitments.AddTerm(r.Context(), id, t)
	if err != nil {
		s.mutationFailed(w, r, log.OpUpdate, err)
		return
	}
	s.mutated()
	NewJSONResponse().Status(http.StatusCreated).Body(NewTermView(added)).Write(w)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	id, req, ok := s.periodRequest(w, r, log.OpPause)
	if !ok {
		return
	}
	from, err := req.Period(s.dashboard.Now())
	if err != nil {
		s.mutationFailed(w, r, log.OpPause, err)
		return
	}
	if err := s.commitments.Pause(r.Context(), id, from); err != nil {
		s.mutationFailed(w, r, log.OpPause, err)
		return
	}
	s.mutated()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id, req, ok := s.periodRequest(w, r, log.OpResume)
	if !ok {
		return
	}
	from, err := req.Period(s.dashboard.Now())
	if err != nil {
		s.mutationFailed(w, r, log.OpResume, err)
		return
	}
	t, err := s.commitments.Resume(r.Context(), id, from)
	if err != nil {
		s.mutationFailed(w, r, log.OpResume, err)
		return
	}
	s.mutated()
	NewJSONResponse().Body(NewTermView(t)).Write(w)
}

// periodRequest reads the commitment id and an optional {"from": "YYYY-MM"}
// body.
func (s *Server) periodRequest(w http.ResponseWriter, r *http.Request, op string) (int64, PeriodRequest, bool) {
	var req PeriodRequest
	id, err := PathID(r)
	if err != nil {
		s.mutationFailed(w, r, op, err)
		return 0, req, false
	}
	if r.ContentLength != 0 {
		if err := DecodeJSON(w, r, &req); err != nil {
			s.mutationFailed(w, r, op, err)
			return 0, req, false
		}
	}
	return id, req, true
}

func (s *Server) handleSetImportant(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.mutationFailed(w, r, log.OpUpdate, err)
		return
	}
	var req ImportantRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.mutationFailed(w, r, log.OpUpdate, err)
		return
	}
	if err := s.commitments.SetImportant(r.Context(), id, *req.Important); err != nil {
		s.mutationFailed(w, r, log.OpUpdate, err)
		return
	}
	s.mutated()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.mutationFailed(w, r, log.OpRecord, err)
		return
	}
	var req PaymentRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.mutationFailed(w, r, log.OpRecord, err)
		return
	}
	p, err := req.ToPayment(id)
	if err != nil {
		s.mutationFailed(w, r, log.OpRecord, err)
		return
	}
	stored, err := s.commitments.RecordPayment(r.Context(), p)
	if err != nil {
		s.mutationFailed(w, r, log.OpRecord, err)
		return
	}
	s.mutated()
	NewJSONResponse().Status(http.StatusCreated).Body(NewPaymentView(stored)).Write(w)
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.mutationFailed(w, r, log.OpDelete, err)
		return
	}
	period, err := PathPeriod(r)
	if err != nil {
		s.mutationFailed(w, r, log.OpDelete, err)
		return
	}
	if err := s.commitments.DeletePayment(r.Context(), id, period); err != nil {
		s.mutationFailed(w, r, log.OpDelete, err)
		return
	}
	s.mutated()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
