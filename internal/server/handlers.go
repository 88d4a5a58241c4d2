package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/soul-spirits/internal/captcha"
	"github.com/jonathan/soul-spirits/internal/db"
	"github.com/jonathan/soul-spirits/internal/logging"
	"github.com/jonathan/soul-spirits/internal/orchestrator"
	"github.com/jonathan/soul-spirits/internal/types"
	"github.com/jonathan/soul-spirits/internal/validation"
)

// historyTimeout bounds writes to the history store after a generation.
const historyTimeout = 5 * time.Second

// CreateSessionRequest represents the optional request body for POST /sessions
type CreateSessionRequest struct {
	// Owner keys the persisted inventory. Defaults to the session id.
	Owner string `json:"owner,omitempty" validate:"omitempty,max=128"`
}

// SubmitRequest represents the request body for /sessions/{id}/submit
type SubmitRequest struct {
	Profile       types.UserProfile          `json:"profile" validate:"-"`
	CaptchaAnswer string                     `json:"captcha_answer"`
	Inventory     *types.InventoryConstraint `json:"inventory,omitempty"`
}

// RedoRequest represents the request body for /sessions/{id}/redo
type RedoRequest struct {
	Critique  string                     `json:"critique" validate:"max=2000"`
	Inventory *types.InventoryConstraint `json:"inventory,omitempty"`
}

// ChallengeView is the verification challenge as the form shows it
type ChallengeView struct {
	Token     string    `json:"token"`
	Question  string    `json:"question"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionView represents a session's current state
type SessionView struct {
	SessionID string                   `json:"session_id"`
	State     string                   `json:"state"`
	Message   string                   `json:"message,omitempty"`
	Cocktail  *types.GeneratedCocktail `json:"cocktail,omitempty"`
	CanRedo   bool                     `json:"can_redo"`
	Captcha   *ChallengeView           `json:"captcha,omitempty"`
}

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Captcha *ChallengeView `json:"captcha,omitempty"`
}

// generation is one submit or redo about to run.
type generation struct {
	sess      *session
	attempt   orchestrator.Attempt
	profile   types.UserProfile
	critique  string
	inventory *types.InventoryConstraint
}

func challengeView(c captcha.Challenge) *ChallengeView {
	if c.Token == "" {
		return nil
	}
	return &ChallengeView{Token: c.Token, Question: c.Question(), ExpiresAt: c.ExpiresAt}
}

// sessionView renders the session. The challenge is included only while the
// form is showing, that is in Idle.
func sessionView(sess *session) SessionView {
	state := sess.orch.State()
	view := SessionView{
		SessionID: sess.id,
		State:     state.Name(),
		CanRedo:   sess.orch.CanRedo(),
	}
	switch st := state.(type) {
	case orchestrator.Complete:
		cocktail := st.Cocktail
		view.Cocktail = &cocktail
	case orchestrator.Error:
		view.Message = st.Message
	case orchestrator.Idle:
		view.Captcha = challengeView(sess.currentChallenge())
	}
	return view
}

// handleCreateSession starts a new session with a fresh challenge
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, err, nil)
		return
	}

	challenge, err := s.captcha.Issue()
	if err != nil {
		s.logger.Error("failed to issue challenge", zap.Error(err))
		s.writeError(w, err, nil)
		return
	}

	sess := s.sessions.create(req.Owner, challenge, s.newOrchestrator)
	s.logger.Info("session created", zap.String("session_id", sess.id))
	s.jsonResponse(w, http.StatusCreated, sessionView(sess))
}

// newOrchestrator builds the state machine for a session
func (s *Server) newOrchestrator(sess *session) *orchestrator.Orchestrator {
	return orchestrator.New(s.recipes, s.images,
		orchestrator.WithLogger(logging.Session(s.logger, sess.id)),
		orchestrator.WithObserver(s.metrics.Observe),
		orchestrator.WithObserver(sess.notify),
	)
}

// handleGetSession returns the current state of a session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	s.jsonResponse(w, http.StatusOK, sessionView(sess))
}

// handleRefreshCaptcha replaces the session's challenge
func (s *Server) handleRefreshCaptcha(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	challenge, err := s.reissue(sess)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	s.jsonResponse(w, http.StatusOK, challengeView(challenge))
}

// reissue issues and stores a fresh challenge for sess
func (s *Server) reissue(sess *session) (captcha.Challenge, error) {
	challenge, err := s.captcha.Issue()
	if err != nil {
		s.logger.Error("failed to issue challenge", zap.String("session_id", sess.id), zap.Error(err))
		return captcha.Challenge{}, err
	}
	sess.setChallenge(challenge)
	return challenge, nil
}

// handleSubmit validates a profile and runs a generation to completion
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	gen, ok := s.prepareSubmit(w, r)
	if !ok {
		return
	}
	s.finish(w, r, gen)
}

// handleSubmitStream is handleSubmit with progress sent as SSE events
func (s *Server) handleSubmitStream(w http.ResponseWriter, r *http.Request) {
	gen, ok := s.prepareSubmit(w, r)
	if !ok {
		return
	}
	s.stream(w, r, gen)
}

// handleRedo regenerates from the retained profile with a critique
func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	gen, ok := s.prepareRedo(w, r)
	if !ok {
		return
	}
	s.finish(w, r, gen)
}

// handleRedoStream is handleRedo with progress sent as SSE events
func (s *Server) handleRedoStream(w http.ResponseWriter, r *http.Request) {
	gen, ok := s.prepareRedo(w, r)
	if !ok {
		return
	}
	s.stream(w, r, gen)
}

// prepareSubmit runs every check that precedes a submission: session state,
// profile validation, then the verification answer. It writes the error
// response itself and reports false when the submission cannot go ahead.
func (s *Server) prepareSubmit(w http.ResponseWriter, r *http.Request) (*generation, bool) {
	sess, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, nil)
		return nil, false
	}

	switch state := sess.orch.State(); {
	case orchestrator.InFlight(state):
		s.writeError(w, orchestrator.ErrGenerationInFlight, nil)
		return nil, false
	case state.Name() != orchestrator.StateIdle:
		s.writeError(w, fmt.Errorf("%w: submit from %s", orchestrator.ErrInvalidTransition, state.Name()), nil)
		return nil, false
	}

	var req SubmitRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, err, challengeView(sess.currentChallenge()))
		return nil, false
	}

	profile, err := validation.ValidateProfile(req.Profile)
	if err != nil {
		s.metrics.ValidationFailed(string(validation.CodeOf(err)))
		s.writeError(w, err, challengeView(sess.currentChallenge()))
		return nil, false
	}

	if err := s.verify(sess, req.CaptchaAnswer); err != nil {
		s.metrics.ValidationFailed(string(validation.CodeOf(err)))
		s.writeError(w, err, challengeView(sess.currentChallenge()))
		return nil, false
	}

	return &generation{
		sess:      sess,
		attempt:   orchestrator.AttemptSubmit,
		profile:   profile,
		inventory: s.inventoryFor(r.Context(), sess, req.Inventory),
	}, true
}

// verify redeems the session's challenge against answer. The challenge is
// consumed either way and replaced with a fresh one.
func (s *Server) verify(sess *session, answer string) error {
	expected, redeemErr := s.captcha.Redeem(sess.currentChallenge().Token)
	if _, err := s.reissue(sess); err != nil {
		return err
	}
	if redeemErr != nil {
		s.logger.Debug("challenge not redeemable", zap.String("session_id", sess.id), zap.Error(redeemErr))
		return validation.FailedVerification()
	}
	return validation.CheckAnswer(expected, answer)
}

// prepareRedo decodes a redo request and checks it can run from the current state.
func (s *Server) prepareRedo(w http.ResponseWriter, r *http.Request) (*generation, bool) {
	sess, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, nil)
		return nil, false
	}

	var req RedoRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, err, nil)
		return nil, false
	}

	if err := redoPrecheck(sess.orch); err != nil {
		s.writeError(w, err, nil)
		return nil, false
	}
	profile, _ := sess.orch.RetryProfile()

	return &generation{
		sess:      sess,
		attempt:   orchestrator.AttemptRedo,
		profile:   profile,
		critique:  req.Critique,
		inventory: s.inventoryFor(r.Context(), sess, req.Inventory),
	}, true
}

// redoPrecheck returns the error Redo would return without starting anything.
func redoPrecheck(o *orchestrator.Orchestrator) error {
	if o.CanRedo() {
		return nil
	}
	state := o.State()
	if orchestrator.InFlight(state) {
		return orchestrator.ErrGenerationInFlight
	}
	if _, ok := o.RetryProfile(); !ok {
		return orchestrator.ErrNoRetryContext
	}
	return fmt.Errorf("%w: redo from %s", orchestrator.ErrInvalidTransition, state.Name())
}

// inventoryFor returns the inventory sent with the request, or the stored one.
// A store failure is logged and the generation proceeds without a constraint.
func (s *Server) inventoryFor(ctx context.Context, sess *session, sent *types.InventoryConstraint) *types.InventoryConstraint {
	if sent != nil {
		return sent
	}
	inv, err := s.inventory.Load(ctx, sess.owner)
	if err != nil {
		s.logger.Warn("failed to load inventory", zap.String("session_id", sess.id), zap.Error(err))
		return nil
	}
	if !inv.HasItems() {
		return nil
	}
	return &inv
}

// generate runs gen under the concurrency cap and generation timeout, then
// records the outcome in the history store.
func (s *Server) generate(ctx context.Context, gen *generation) (*types.GeneratedCocktail, error) {
	if !s.slots.TryAcquire(1) {
		s.metrics.GenerationRejected("capacity")
		return nil, ErrAtCapacity
	}
	defer s.slots.Release(1)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	var (
		cocktail *types.GeneratedCocktail
		err      error
	)
	if gen.attempt == orchestrator.AttemptRedo {
		cocktail, err = gen.sess.orch.Redo(ctx, gen.critique, gen.inventory)
	} else {
		cocktail, err = gen.sess.orch.Submit(ctx, gen.profile, gen.inventory)
	}

	if isConflict(err) {
		return nil, err
	}
	s.record(ctx, gen, cocktail, err)
	return cocktail, err
}

// record saves the outcome of a generation when history is configured.
func (s *Server) record(ctx context.Context, gen *generation, cocktail *types.GeneratedCocktail, genErr error) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()

	logger := logging.Session(s.logger, gen.sess.id)
	if genErr != nil {
		failure := &db.GenerationFailure{
			SessionID: gen.sess.id,
			Attempt:   string(gen.attempt),
			Step:      gen.sess.lastFailedStep(),
			Message:   genErr.Error(),
		}
		if err := s.history.SaveFailure(ctx, failure); err != nil {
			logger.Warn("failed to record generation failure", zap.Error(err))
		}
		return
	}

	rec := &db.CocktailRecord{
		SessionID: gen.sess.id,
		Attempt:   string(gen.attempt),
		Profile:   gen.profile,
		Critique:  gen.critique,
		Cocktail:  *cocktail,
	}
	if err := s.history.SaveCocktail(ctx, rec); err != nil {
		logger.Warn("failed to record cocktail", zap.Error(err))
	}
}

// nextChallenge is the challenge to answer on a retry after a submit was
// turned away. The one just answered has already been consumed.
func (gen *generation) nextChallenge() *ChallengeView {
	if gen.attempt != orchestrator.AttemptSubmit {
		return nil
	}
	return challengeView(gen.sess.currentChallenge())
}

// isConflict reports whether err was returned before any generation began.
func isConflict(err error) bool {
	return errors.Is(err, orchestrator.ErrGenerationInFlight) ||
		errors.Is(err, orchestrator.ErrInvalidTransition) ||
		errors.Is(err, orchestrator.ErrNoRetryContext) ||
		errors.Is(err, ErrAtCapacity)
}

// finish runs a generation and writes the settled session view. A failed
// generation is not an HTTP error: the view carries the Error state.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, gen *generation) {
	if _, err := s.generate(r.Context(), gen); isConflict(err) {
		s.writeError(w, err, gen.nextChallenge())
		return
	}
	s.jsonResponse(w, http.StatusOK, sessionView(gen.sess))
}

// stream runs a generation, sending a state event per transition and then
// a complete event with the settled view, or an error event.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, gen *generation) {
	events, err := newEventStream(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger := logging.Session(s.logger, gen.sess.id)

	stop := gen.sess.listen(func(t orchestrator.Transition) {
		if err := events.transition(t); err != nil {
			logger.Debug("stream write failed", zap.Error(err))
		}
	})
	defer stop()

	_, err = s.generate(r.Context(), gen)
	if isConflict(err) {
		err = events.fail(err, gen.nextChallenge())
	} else {
		err = events.complete(sessionView(gen.sess))
	}
	if err != nil {
		logger.Debug("stream write failed", zap.Error(err))
	}
}

// handleReset returns a settled session to Idle, keeping the profile for redo
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.resetSession(w, r, (*orchestrator.Orchestrator).Reset)
}

// handleStartOver returns to Idle and forgets the profile
func (s *Server) handleStartOver(w http.ResponseWriter, r *http.Request) {
	s.resetSession(w, r, (*orchestrator.Orchestrator).StartOver)
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request, reset func(*orchestrator.Orchestrator) error) {
	sess, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	if err := reset(sess.orch); err != nil {
		s.writeError(w, err, nil)
		return
	}
	s.jsonResponse(w, http.StatusOK, sessionView(sess))
}

// handleHealth returns server health status. An unreachable history
// database degrades the status but does not fail the check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.history != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.history.Ping(ctx); err != nil {
			s.logger.Warn("history database unreachable", zap.Error(err))
			status = "degraded"
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":   status,
		"sessions": s.sessions.count(),
		"history":  s.history != nil,
	})
}

// decodeBody decodes a JSON request body and validates its struct tags. An
// empty body leaves dst at its zero value.
func (s *Server) decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &ErrBadRequest{Message: "invalid request body: " + err.Error()}
	}
	if err := s.validate.Struct(dst); err != nil {
		return requestValidationError(err)
	}
	return nil
}
