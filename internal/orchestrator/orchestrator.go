// Package orchestrator drives a single cocktail generation at a time through
// Idle, GeneratingRecipe, GeneratingImage and then Complete or Error, and owns
// the profile retained for redo.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/soul-spirits/internal/composer"
	"github.com/jonathan/soul-spirits/internal/types"
)

// RecipeGenerator produces a recipe from a composed instruction.
type RecipeGenerator interface {
	Generate(ctx context.Context, instruction string) (*types.CocktailRecipe, error)
}

// ImageGenerator produces an image data URI from a composed instruction.
type ImageGenerator interface {
	Generate(ctx context.Context, instruction string) (string, error)
}

// Attempt distinguishes a fresh submission from a redo.
type Attempt string

const (
	AttemptSubmit Attempt = "submit"
	AttemptRedo   Attempt = "redo"
)

// Transition describes one state change.
type Transition struct {
	From    State
	To      State
	At      time.Time
	Attempt Attempt
	// Started is when the current attempt entered GeneratingRecipe. Zero for
	// transitions outside an attempt (reset, start over).
	Started time.Time
}

// Observer is called for every transition, in order, after the state changed.
// Observers must not block for long; they run on the generating goroutine.
type Observer func(Transition)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers an observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator is the generation state machine. It is safe for concurrent
// use; concurrent generations are rejected with ErrGenerationInFlight.
type Orchestrator struct {
	recipes RecipeGenerator
	images  ImageGenerator

	observers []Observer
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	state   State
	retry   *types.UserProfile
	attempt Attempt
	started time.Time

	// notifyMu keeps observer calls in transition order.
	notifyMu sync.Mutex
}

// New creates an Orchestrator in the Idle state.
func New(recipes RecipeGenerator, images ImageGenerator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		recipes: recipes,
		images:  images,
		logger:  zap.NewNop(),
		now:     time.Now,
		state:   Idle{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// RetryProfile returns the profile a redo would reuse.
func (o *Orchestrator) RetryProfile() (types.UserProfile, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.retry == nil {
		return types.UserProfile{}, false
	}
	return *o.retry, true
}

// CanRedo reports whether Redo would be accepted right now.
func (o *Orchestrator) CanRedo() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.retry != nil && Settled(o.state)
}

// Submit starts a generation for profile from Idle and records profile as the
// retry context. It blocks until the attempt reaches Complete or Error. A
// generation failure is returned as the error and is also the Error state.
func (o *Orchestrator) Submit(ctx context.Context, profile types.UserProfile, inventory *types.InventoryConstraint) (*types.GeneratedCocktail, error) {
	o.mu.Lock()
	if InFlight(o.state) {
		o.mu.Unlock()
		return nil, ErrGenerationInFlight
	}
	if _, ok := o.state.(Idle); !ok {
		from := o.state.Name()
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, from)
	}
	retry := profile
	o.retry = &retry

	return o.generate(ctx, AttemptSubmit, profile, snapshot(inventory), "")
}

// Redo regenerates from Complete or Error using the retained profile and
// critique. The retry context is left untouched, so redo stays available.
func (o *Orchestrator) Redo(ctx context.Context, critique string, inventory *types.InventoryConstraint) (*types.GeneratedCocktail, error) {
	o.mu.Lock()
	if InFlight(o.state) {
		o.mu.Unlock()
		return nil, ErrGenerationInFlight
	}
	if o.retry == nil {
		o.mu.Unlock()
		return nil, ErrNoRetryContext
	}
	if !Settled(o.state) {
		from := o.state.Name()
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: redo from %s", ErrInvalidTransition, from)
	}
	profile := *o.retry

	return o.generate(ctx, AttemptRedo, profile, snapshot(inventory), critique)
}

// Reset returns to Idle from Complete or Error, keeping the retry context.
// It is a no-op in Idle.
func (o *Orchestrator) Reset() error {
	return o.reset(false)
}

// StartOver resets and also forgets the retry context.
func (o *Orchestrator) StartOver() error {
	return o.reset(true)
}

func (o *Orchestrator) reset(clearRetry bool) error {
	o.mu.Lock()
	if InFlight(o.state) {
		o.mu.Unlock()
		return ErrGenerationInFlight
	}
	if clearRetry {
		o.retry = nil
	}
	if _, ok := o.state.(Idle); ok {
		o.mu.Unlock()
		return nil
	}
	o.attempt = ""
	o.started = time.Time{}
	o.transitionLocked(Idle{})
	return nil
}

// generate runs one attempt. Called with mu held; releases it. A panic
// anywhere after that, observers included, leaves the machine in Error
// before it propagates.
func (o *Orchestrator) generate(ctx context.Context, attempt Attempt, profile types.UserProfile, inventory *types.InventoryConstraint, critique string) (*types.GeneratedCocktail, error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("generation panicked", zap.Any("panic", r))
			o.abandon()
			panic(r)
		}
	}()

	o.attempt = attempt
	o.started = o.now()
	o.transitionLocked(GeneratingRecipe{})

	return o.run(ctx, profile, inventory, critique)
}

// abandon settles an attempt that stopped without reaching Complete or Error.
func (o *Orchestrator) abandon() {
	o.mu.Lock()
	if !InFlight(o.state) {
		o.mu.Unlock()
		return
	}
	o.transitionLocked(Error{Message: FallbackMessage})
}

func (o *Orchestrator) run(ctx context.Context, profile types.UserProfile, inventory *types.InventoryConstraint, critique string) (*types.GeneratedCocktail, error) {
	fail := func(step string, cause error) (*types.GeneratedCocktail, error) {
		o.logger.Warn("generation failed",
			zap.String("step", step),
			zap.String("attempt", string(o.currentAttempt())),
			zap.Error(cause))
		o.settle(Error{Message: messageFor(cause)})
		return nil, cause
	}

	if err := ctx.Err(); err != nil {
		return fail("recipe", err)
	}

	instruction := composer.ComposeRecipeInstruction(profile, inventory, critique)
	recipe, err := o.recipes.Generate(ctx, instruction)
	if err == nil && recipe == nil {
		err = errSilent
	}
	if err != nil {
		return fail("recipe", err)
	}

	o.mu.Lock()
	o.transitionLocked(GeneratingImage{})

	if err := ctx.Err(); err != nil {
		return fail("image", err)
	}

	imageURL, err := o.images.Generate(ctx, composer.ComposeImageInstruction(recipe.VisualDescription))
	if err == nil && imageURL == "" {
		err = errSilent
	}
	if err != nil {
		return fail("image", err)
	}

	cocktail := types.NewGeneratedCocktail(*recipe, imageURL)
	o.settle(Complete{Cocktail: cocktail})
	o.logger.Info("cocktail generated",
		zap.String("cocktail_id", cocktail.ID),
		zap.String("name", cocktail.Name),
		zap.String("attempt", string(o.currentAttempt())))
	return &cocktail, nil
}

func (o *Orchestrator) currentAttempt() Attempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempt
}

func (o *Orchestrator) settle(to State) {
	o.mu.Lock()
	o.transitionLocked(to)
}

// transitionLocked moves to the given state and notifies observers. Called
// with mu held; releases it before observers run.
func (o *Orchestrator) transitionLocked(to State) {
	t := Transition{
		From:    o.state,
		To:      to,
		At:      o.now(),
		Attempt: o.attempt,
		Started: o.started,
	}
	o.state = to

	o.notifyMu.Lock()
	o.mu.Unlock()
	defer o.notifyMu.Unlock()

	o.logger.Debug("state transition",
		zap.String("from", t.From.Name()),
		zap.String("to", t.To.Name()),
		zap.String("attempt", string(t.Attempt)))
	for _, obs := range o.observers {
		obs(t)
	}
}

// snapshot copies inventory so later edits by the caller do not leak into a
// running attempt.
func snapshot(inventory *types.InventoryConstraint) *types.InventoryConstraint {
	if inventory == nil {
		return nil
	}
	normalized := inventory.Normalized()
	return &normalized
}
