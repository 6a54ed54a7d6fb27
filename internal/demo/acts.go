package demo

// DemoContext holds shared state passed between steps.
type DemoContext struct {
	Decks    []string
	FlipCard string
}

// StepFunc is a function that runs a single demo step.
type StepFunc func(r *Runner, ctx *DemoContext) error

// Step represents a single named step within an act.
type Step struct {
	Name    string
	Fn      StepFunc
	Insight string
}

// Act represents a named act with narration and steps.
type Act struct {
	Number    int
	Name      string
	Narration []string
	Steps     []Step
}

// BuildActs returns all acts with their steps.
func BuildActs() []Act {
	return []Act{
		{
			Number: 1,
			Name:   "Setting The Table",
			Narration: []string{
				"Lay out two decks of card images and let cardshell catalog them.",
				"The catalog is SQLite; face state survives restarts.",
			},
			Steps: []Step{
				{Name: "prepare_decks", Fn: stepPrepareDecks, Insight: "One directory per deck, one image per card. back.png is the card back, not a card."},
				{Name: "doctor", Fn: stepDoctor, Insight: "Doctor resolves every location and reports where each one came from."},
				{Name: "list_decks", Fn: stepListDecks, Insight: "Listing a deck directory also syncs it into the catalog."},
				{Name: "show_deck", Fn: stepShowDeck, Insight: "A deck is laid out on the smallest square grid that fits every card."},
			},
		},
		{
			Number: 2,
			Name:   "Recoverable Errors",
			Narration: []string{
				"Errors on the UI loop and in background tasks are caught by one funnel.",
				"The user decides: keep going, or stop with a distinct exit code.",
			},
			Steps: []Step{
				{Name: "ui_error_continue", Fn: stepUIErrorContinue, Insight: "The dialog reports the error type and message. Continue really continues."},
				{Name: "ui_error_stop", Fn: stepUIErrorStop, Insight: "Stopping after a UI error exits with 3 after a graceful shutdown."},
				{Name: "task_error_stop", Fn: stepTaskErrorStop, Insight: "Three failed tasks nobody waited for become one dialog that lists all three causes. Stop exits with 4."},
			},
		},
		{
			Number: 3,
			Name:   "Fatal Errors",
			Narration: []string{
				"A crash on a detached worker can never be survived.",
				"The user gets to read it, but only for so long; then the process is killed.",
			},
			Steps: []Step{
				{Name: "thread_error_acknowledged", Fn: stepThreadErrorAcknowledged, Insight: "After the dialog is dismissed the process is killed without running cleanup."},
				{Name: "thread_error_timeout", Fn: stepThreadErrorTimeout, Insight: "Nobody answered, so the kill came when --notify-timeout ran out."},
				{Name: "no_terminal_fails_open", Fn: stepNoTerminalFailsOpen, Insight: "Without a terminal there is nobody to ask. Recoverable errors are logged and the session keeps going."},
			},
		},
		{
			Number: 4,
			Name:   "Picking Up Where We Left Off",
			Narration: []string{
				"Flipped cards are written in the background and read back on the next run.",
			},
			Steps: []Step{
				{Name: "flip_card", Fn: stepFlipCard, Insight: "Nobody waits for the write. If it failed, the funnel would report it as a background task error."},
				{Name: "face_state_persisted", Fn: stepFaceStatePersisted, Insight: "The catalog remembered the flip across processes."},
			},
		},
	}
}
