package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/soul-spirits/internal/imagegen"
	"github.com/jonathan/soul-spirits/internal/llm"
	"github.com/jonathan/soul-spirits/internal/recipe"
	"github.com/jonathan/soul-spirits/internal/types"
)

const recipeJSON = `{
  "name": "Velvet Hour",
  "tagline": "Slow down",
  "story": "Quietly intense, like you.",
  "ingredients": [{"item": "Gin", "amount": "50ml"}, {"item": "Tonic Water", "amount": "top up"}],
  "glassware": "Highball",
  "garnish": "Cucumber ribbon",
  "instructions": "Build over ice.",
  "visualDescription": "A tall sparkling glass with a cucumber spiral."
}`

func testProfile() types.UserProfile {
	return types.UserProfile{
		Name:        "Ada",
		AgeGroup:    types.AgeGroupCoreMillennial,
		MBTI:        "INTJ",
		Zodiac:      "Scorpio",
		Mood:        "contemplative",
		Preferences: "no mint",
	}
}

// fakeText is a recipe.TextGenerator returning canned payloads.
type fakeText struct {
	mu       sync.Mutex
	payloads []string
	prompts  []string
}

func (f *fakeText) GenerateJSON(_ context.Context, req llm.JSONRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, req.Prompt)
	payload := f.payloads[0]
	if len(f.payloads) > 1 {
		f.payloads = f.payloads[1:]
	}
	return payload, nil
}

func (f *fakeText) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[len(f.prompts)-1]
}

// fakeSegments is an imagegen.SegmentGenerator.
type fakeSegments struct {
	mu       sync.Mutex
	segments []llm.Segment
	calls    int
	prompts  []string
}

func (f *fakeSegments) GenerateSegments(_ context.Context, prompt string, _ llm.ModelTier) ([]llm.Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.segments, nil
}

func (f *fakeSegments) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func pngSegments() []llm.Segment {
	return []llm.Segment{{MIMEType: "image/png", Data: []byte{0x89, 0x50}}}
}

type recorder struct {
	mu          sync.Mutex
	transitions []Transition
}

func (r *recorder) observe(t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

func (r *recorder) path() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.transitions) == 0 {
		return nil
	}
	names := []string{r.transitions[0].From.Name()}
	for _, t := range r.transitions {
		names = append(names, t.To.Name())
	}
	return names
}

func newTestOrchestrator(text *fakeText, images *fakeSegments, rec *recorder) *Orchestrator {
	return New(recipe.NewGenerator(text), imagegen.NewGenerator(images), WithObserver(rec.observe))
}

func TestSubmit_HappyPath(t *testing.T) {
	text := &fakeText{payloads: []string{recipeJSON}}
	images := &fakeSegments{segments: pngSegments()}
	rec := &recorder{}
	orch := newTestOrchestrator(text, images, rec)

	cocktail, err := orch.Submit(context.Background(), testProfile(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{StateIdle, StateGeneratingRecipe, StateGeneratingImage, StateComplete}, rec.path())

	complete, ok := orch.State().(Complete)
	require.True(t, ok)
	assert.Equal(t, *cocktail, complete.Cocktail)
	assert.NotEmpty(t, complete.Cocktail.Name)
	assert.NotEmpty(t, complete.Cocktail.Glassware)
	assert.NotEmpty(t, complete.Cocktail.Garnish)
	assert.NotEmpty(t, complete.Cocktail.Instructions)
	require.NotEmpty(t, complete.Cocktail.Ingredients)
	assert.Equal(t, "Gin", complete.Cocktail.Ingredients[0].Item)
	assert.Equal(t, "data:image/png;base64,iVA=", complete.Cocktail.ImageURL)

	// The image prompt is keyed off the recipe's visual description
	require.Len(t, images.prompts, 1)
	assert.Contains(t, images.prompts[0], "A tall sparkling glass with a cucumber spiral.")

	profile, ok := orch.RetryProfile()
	require.True(t, ok)
	assert.Equal(t, testProfile(), profile)
	assert.True(t, orch.CanRedo())
}

func TestSubmit_MalformedRecipeSkipsImage(t *testing.T) {
	malformed := `{"name":"Velvet Hour","story":"s","ingredients":[{"item":"Gin","amount":"50ml"}],"garnish":"g","instructions":"i","visualDescription":"v"}`
	text := &fakeText{payloads: []string{malformed}}
	images := &fakeSegments{segments: pngSegments()}
	rec := &recorder{}
	orch := newTestOrchestrator(text, images, rec)

	_, err := orch.Submit(context.Background(), testProfile(), nil)

	var parseErr *recipe.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, []string{StateIdle, StateGeneratingRecipe, StateError}, rec.path())

	failed, ok := orch.State().(Error)
	require.True(t, ok)
	assert.Equal(t, parseErr.Error(), failed.Message)
	assert.Contains(t, failed.Message, "glassware")
	assert.Equal(t, 0, images.callCount())
}

func TestSubmit_ImageWithoutInlineDataFails(t *testing.T) {
	text := &fakeText{payloads: []string{recipeJSON}}
	images := &fakeSegments{segments: []llm.Segment{{Text: "I'd rather describe it in words"}}}
	rec := &recorder{}
	orch := newTestOrchestrator(text, images, rec)

	cocktail, err := orch.Submit(context.Background(), testProfile(), nil)
	assert.Nil(t, cocktail)

	var imgErr *imagegen.GenerationError
	require.ErrorAs(t, err, &imgErr)
	assert.Equal(t, []string{StateIdle, StateGeneratingRecipe, StateGeneratingImage, StateError}, rec.path())
	assert.NotContains(t, rec.path(), StateComplete)
	assert.IsType(t, Error{}, orch.State())
}

func TestRedo_ComposesCritiqueAndKeepsRetryContext(t *testing.T) {
	text := &fakeText{payloads: []string{recipeJSON}}
	images := &fakeSegments{segments: pngSegments()}
	rec := &recorder{}
	orch := newTestOrchestrator(text, images, rec)

	_, err := orch.Submit(context.Background(), testProfile(), nil)
	require.NoError(t, err)
	assert.NotContains(t, text.lastPrompt(), "too sweet, remove gin")

	_, err = orch.Redo(context.Background(), "too sweet, remove gin", nil)
	require.NoError(t, err)

	assert.Contains(t, text.lastPrompt(), "REGENERATION")
	assert.Contains(t, text.lastPrompt(), `"too sweet, remove gin"`)

	profile, ok := orch.RetryProfile()
	require.True(t, ok)
	assert.Equal(t, testProfile(), profile)
	assert.IsType(t, Complete{}, orch.State())

	// Redo remains available after a redo
	_, err = orch.Redo(context.Background(), "now too dry", nil)
	require.NoError(t, err)
	assert.Contains(t, text.lastPrompt(), "now too dry")
	assert.NotContains(t, text.lastPrompt(), "too sweet, remove gin")

	last := rec.transitions[len(rec.transitions)-1]
	assert.Equal(t, AttemptRedo, last.Attempt)
}

func TestRedo_WithoutRetryContextMakesNoCalls(t *testing.T) {
	text := &fakeText{payloads: []string{recipeJSON}}
	images := &fakeSegments{segments: pngSegments()}
	rec := &recorder{}
	orch := newTestOrchestrator(text, images, rec)

	_, err := orch.Redo(context.Background(), "too sweet", nil)
	assert.ErrorIs(t, err, ErrNoRetryContext)
	assert.Empty(t, text.prompts)
	assert.Equal(t, 0, images.callCount())
	assert.Empty(t, rec.transitions)
	assert.IsType(t, Idle{}, orch.State())
}

func TestRedo_FromErrorState(t *testing.T) {
	text := &fakeText{payloads: []string{`not json`, recipeJSON}}
	images := &fakeSegments{segments: pngSegments()}
	orch := newTestOrchestrator(text, images, &recorder{})

	_, err := orch.Submit(context.Background(), testProfile(), nil)
	require.Error(t, err)
	require.True(t, orch.CanRedo())

	_, err = orch.Redo(context.Background(), "try again", nil)
	require.NoError(t, err)
	assert.IsType(t, Complete{}, orch.State())
}

func TestSubmit_OnlyFromIdle(t *testing.T) {
	text := &fakeText{payloads: []string{recipeJSON}}
	orch := newTestOrchestrator(text, &fakeSegments{segments: pngSegments()}, &recorder{})

	_, err := orch.Submit(context.Background(), testProfile(), nil)
	require.NoError(t, err)

	_, err = orch.Submit(context.Background(), testProfile(), nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResetAndStartOver(t *testing.T) {
	text := &fakeText{payloads: []string{recipeJSON}}
	rec := &recorder{}
	orch := newTestOrchestrator(text, &fakeSegments{segments: pngSegments()}, rec)

	require.NoError(t, orch.Reset(), "reset from idle is a no-op")
	assert.Empty(t, rec.transitions)

	_, err := orch.Submit(context.Background(), testProfile(), nil)
	require.NoError(t, err)

	require.NoError(t, orch.Reset())
	assert.IsType(t, Idle{}, orch.State())
	_, ok := orch.RetryProfile()
	assert.True(t, ok, "reset keeps the retry context")
	assert.False(t, orch.CanRedo(), "redo is only legal from complete or error")

	_, err = orch.Redo(context.Background(), "x", nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = orch.Submit(context.Background(), testProfile(), nil)
	require.NoError(t, err)

	require.NoError(t, orch.StartOver())
	assert.IsType(t, Idle{}, orch.State())
	_, ok = orch.RetryProfile()
	assert.False(t, ok)
}

func TestSubmit_RejectsConcurrentGeneration(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	recipes := blockingRecipes{entered: entered, release: release}
	orch := New(recipes, imagegen.NewGenerator(&fakeSegments{segments: pngSegments()}))

	done := make(chan error, 1)
	go func() {
		_, err := orch.Submit(context.Background(), testProfile(), nil)
		done <- err
	}()
	<-entered

	assert.IsType(t, GeneratingRecipe{}, orch.State())
	_, err := orch.Submit(context.Background(), testProfile(), nil)
	assert.ErrorIs(t, err, ErrGenerationInFlight)
	_, err = orch.Redo(context.Background(), "x", nil)
	assert.ErrorIs(t, err, ErrGenerationInFlight)
	assert.ErrorIs(t, orch.Reset(), ErrGenerationInFlight)
	assert.ErrorIs(t, orch.StartOver(), ErrGenerationInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.IsType(t, Complete{}, orch.State())
}

type blockingRecipes struct {
	entered chan struct{}
	release chan struct{}
}

func (b blockingRecipes) Generate(ctx context.Context, _ string) (*types.CocktailRecipe, error) {
	close(b.entered)
	<-b.release
	return recipe.Parse([]byte(recipeJSON))
}

type funcRecipes func(ctx context.Context, instruction string) (*types.CocktailRecipe, error)

func (f funcRecipes) Generate(ctx context.Context, instruction string) (*types.CocktailRecipe, error) {
	return f(ctx, instruction)
}

type funcImages func(ctx context.Context, instruction string) (string, error)

func (f funcImages) Generate(ctx context.Context, instruction string) (string, error) {
	return f(ctx, instruction)
}

func TestSubmit_FallbackMessage(t *testing.T) {
	tests := []struct {
		name    string
		recipes funcRecipes
	}{
		{"empty error text", func(context.Context, string) (*types.CocktailRecipe, error) { return nil, errors.New("") }},
		{"nil recipe and nil error", func(context.Context, string) (*types.CocktailRecipe, error) { return nil, nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch := New(tt.recipes, funcImages(func(context.Context, string) (string, error) { return "data:,", nil }))
			_, err := orch.Submit(context.Background(), testProfile(), nil)
			require.Error(t, err)
			assert.Equal(t, Error{Message: FallbackMessage}, orch.State())
		})
	}
}

func TestSubmit_CancelledContextSurfacesAsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	orch := New(funcRecipes(func(context.Context, string) (*types.CocktailRecipe, error) {
		called = true
		return nil, nil
	}), funcImages(func(context.Context, string) (string, error) { return "", nil }))

	_, err := orch.Submit(ctx, testProfile(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, Error{Message: context.Canceled.Error()}, orch.State())
}

func TestSubmit_PanicDoesNotLeaveStateInFlight(t *testing.T) {
	orch := New(funcRecipes(func(context.Context, string) (*types.CocktailRecipe, error) {
		panic("boom")
	}), funcImages(func(context.Context, string) (string, error) { return "", nil }))

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = orch.Submit(context.Background(), testProfile(), nil)
	})
	assert.Equal(t, Error{Message: FallbackMessage}, orch.State())
}

func TestSubmit_ObserverPanicDoesNotLeaveStateInFlight(t *testing.T) {
	panicked := false
	observer := func(tr Transition) {
		if _, ok := tr.To.(GeneratingRecipe); ok && !panicked {
			panicked = true
			panic("observer failed")
		}
	}
	orch := New(funcRecipes(func(context.Context, string) (*types.CocktailRecipe, error) {
		return recipe.Parse([]byte(recipeJSON))
	}), funcImages(func(context.Context, string) (string, error) { return "data:,", nil }),
		WithObserver(observer))

	assert.PanicsWithValue(t, "observer failed", func() {
		_, _ = orch.Submit(context.Background(), testProfile(), nil)
	})
	assert.Equal(t, Error{Message: FallbackMessage}, orch.State())
	assert.True(t, orch.CanRedo())

	require.NoError(t, orch.Reset())
	cocktail, err := orch.Submit(context.Background(), testProfile(), nil)
	require.NoError(t, err)
	assert.NotNil(t, cocktail)
}

func TestRedo_ObserverPanicDoesNotLeaveStateInFlight(t *testing.T) {
	armed := false
	observer := func(tr Transition) {
		if _, ok := tr.To.(GeneratingRecipe); ok && armed {
			armed = false
			panic("observer failed")
		}
	}
	orch := New(funcRecipes(func(context.Context, string) (*types.CocktailRecipe, error) {
		return recipe.Parse([]byte(recipeJSON))
	}), funcImages(func(context.Context, string) (string, error) { return "data:,", nil }),
		WithObserver(observer))

	_, err := orch.Submit(context.Background(), testProfile(), nil)
	require.NoError(t, err)

	armed = true
	assert.Panics(t, func() {
		_, _ = orch.Redo(context.Background(), "less sweet", nil)
	})
	assert.Equal(t, Error{Message: FallbackMessage}, orch.State())

	_, err = orch.Redo(context.Background(), "less sweet", nil)
	assert.NoError(t, err)
}

func TestSubmit_InventoryIsSnapshotted(t *testing.T) {
	var instruction string
	orch := New(funcRecipes(func(_ context.Context, in string) (*types.CocktailRecipe, error) {
		instruction = in
		return recipe.Parse([]byte(recipeJSON))
	}), funcImages(func(context.Context, string) (string, error) { return "data:,", nil }))

	inv := &types.InventoryConstraint{Items: []string{"Gin", "Tonic Water"}, Strict: true}
	_, err := orch.Submit(context.Background(), testProfile(), inv)
	require.NoError(t, err)
	assert.Contains(t, instruction, "STRICT INVENTORY CONSTRAINT")
	assert.Contains(t, instruction, "Gin, Tonic Water")
}

func TestTransition_CarriesTimestamps(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	rec := &recorder{}
	orch := New(recipe.NewGenerator(&fakeText{payloads: []string{recipeJSON}}),
		imagegen.NewGenerator(&fakeSegments{segments: pngSegments()}),
		WithObserver(rec.observe), WithClock(clock))

	_, err := orch.Submit(context.Background(), testProfile(), nil)
	require.NoError(t, err)

	require.Len(t, rec.transitions, 3)
	started := rec.transitions[0].Started
	for _, tr := range rec.transitions {
		assert.Equal(t, started, tr.Started)
		assert.Equal(t, AttemptSubmit, tr.Attempt)
		assert.False(t, tr.At.Before(started))
	}
}
