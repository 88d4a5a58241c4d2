package orchestrator

import "github.com/jonathan/soul-spirits/internal/types"

// State is one value of the generation state machine. The set of
// implementations is closed: Idle, GeneratingRecipe, GeneratingImage,
// Complete and Error.
type State interface {
	// Name is the stable identifier used on the wire and in logs.
	Name() string
	isState()
}

// State names.
const (
	StateIdle             = "idle"
	StateGeneratingRecipe = "generating_recipe"
	StateGeneratingImage  = "generating_image"
	StateComplete         = "complete"
	StateError            = "error"
)

// Idle means no generation is running and no result is shown.
type Idle struct{}

// GeneratingRecipe means the text service call is in flight.
type GeneratingRecipe struct{}

// GeneratingImage means the recipe is ready and the image call is in flight.
type GeneratingImage struct{}

// Complete holds the finished cocktail.
type Complete struct {
	Cocktail types.GeneratedCocktail
}

// Error holds the message shown for a failed attempt.
type Error struct {
	Message string
}

func (Idle) Name() string             { return StateIdle }
func (GeneratingRecipe) Name() string { return StateGeneratingRecipe }
func (GeneratingImage) Name() string  { return StateGeneratingImage }
func (Complete) Name() string         { return StateComplete }
func (Error) Name() string            { return StateError }

func (Idle) isState()             {}
func (GeneratingRecipe) isState() {}
func (GeneratingImage) isState()  {}
func (Complete) isState()         {}
func (Error) isState()            {}

// InFlight reports whether s is one of the generating states.
func InFlight(s State) bool {
	switch s.(type) {
	case GeneratingRecipe, GeneratingImage:
		return true
	default:
		return false
	}
}

// Settled reports whether s is Complete or Error.
func Settled(s State) bool {
	switch s.(type) {
	case Complete, Error:
		return true
	default:
		return false
	}
}
