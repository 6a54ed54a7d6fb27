package demo

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	helpHint = "Type 'help'"
	askHint  = "[c]ontinue / [s]top"
	ackHint  = "Press Enter to close"
)

// Act I: Setting The Table

func cardPNG(w, h int, c color.Color) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func stepPrepareDecks(r *Runner, ctx *DemoContext) error {
	layout := map[string][]string{
		"poker": {"ace_of_spades.png", "king_of_hearts.png", "queen_of_clubs.png", "jack_of_diamonds.png", "back.png"},
		"tarot": {"the_fool.png", "the_magician.png", "the_high_priestess.png"},
	}
	face, err := cardPNG(25, 35, color.RGBA{R: 240, G: 240, B: 230, A: 255})
	if err != nil {
		return err
	}
	for deckName, cards := range layout {
		dir := filepath.Join(r.deckDir, deckName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create deck %s: %w", deckName, err)
		}
		for _, c := range cards {
			if err := os.WriteFile(filepath.Join(dir, c), face, 0o644); err != nil {
				return fmt.Errorf("write %s/%s: %w", deckName, c, err)
			}
		}
		r.printDetail("Deck %s: %d images", deckName, len(cards))
	}
	ctx.Decks = []string{"poker", "tarot"}
	ctx.FlipCard = "Jack Of Diamonds"
	return nil
}

func stepDoctor(r *Runner, ctx *DemoContext) error {
	m, raw, err := r.cardshell("doctor")
	if err != nil {
		return err
	}
	if err := r.mustSuccess(m, raw); err != nil {
		return err
	}
	if get(m, "data", "db_ok") != true {
		return fmt.Errorf("database not healthy: %s", getStr(m, "data", "db_error"))
	}
	if n := getNum(m, "data", "deck_count"); n != len(ctx.Decks) {
		return fmt.Errorf("expected %d decks, doctor saw %d", len(ctx.Decks), n)
	}
	r.printDetail("db %s (%s)", getStr(m, "data", "db_path"), getStr(m, "data", "db_source"))
	r.printDetail("decks %s (%s)", getStr(m, "data", "deck_dir"), getStr(m, "data", "deck_source"))
	return nil
}

func stepListDecks(r *Runner, ctx *DemoContext) error {
	m, raw, err := r.cardshell("decks")
	if err != nil {
		return err
	}
	if err := r.mustSuccess(m, raw); err != nil {
		return err
	}
	if n := getNum(m, "data", "count"); n != len(ctx.Decks) {
		return fmt.Errorf("expected %d decks, got %d", len(ctx.Decks), n)
	}
	decks, _ := get(m, "data", "decks").([]any)
	for _, d := range decks {
		dm, _ := d.(map[string]any)
		r.printDetail("%s: %d cards", getStr(dm, "name"), getNum(dm, "card_count"))
	}
	return nil
}

func stepShowDeck(r *Runner, ctx *DemoContext) error {
	m, raw, err := r.cardshell("decks", "show", "poker")
	if err != nil {
		return err
	}
	if err := r.mustSuccess(m, raw); err != nil {
		return err
	}
	if back := getStr(m, "data", "back"); back != "back.png" {
		return fmt.Errorf("expected back.png as card back, got %q", back)
	}
	if cols := getNum(m, "data", "columns"); cols != 2 {
		return fmt.Errorf("expected 2 columns for 4 cards, got %d", cols)
	}
	r.printDetail("4 cards on a 2x2 grid, back image %s", getStr(m, "data", "back"))
	return nil
}

// Act II: Recoverable Errors

func stepUIErrorContinue(r *Runner, ctx *DemoContext) error {
	res, err := r.session([]string{"--interactive"}, []exchange{
		{waitFor: helpHint, send: "fault ui"},
		{waitFor: askHint, send: "continue"},
		{waitFor: "Found 2 deck(s)", send: "decks"},
		{waitFor: "tarot", send: "quit"},
	}, false)
	if err != nil {
		return err
	}
	if res.code != 0 {
		return fmt.Errorf("expected exit 0 after continuing, got %d", res.code)
	}
	if !strings.Contains(res.stdout, "card texture missing from atlas") {
		return fmt.Errorf("dialog did not name the error:\n%s", res.stdout)
	}
	r.printDetail("continued, then quit normally (exit 0)")
	return nil
}

func stepUIErrorStop(r *Runner, ctx *DemoContext) error {
	res, err := r.session([]string{"--interactive"}, []exchange{
		{waitFor: helpHint, send: "fault ui"},
		{waitFor: askHint, send: "stop"},
	}, true)
	if err != nil {
		return err
	}
	if res.code != 3 {
		return fmt.Errorf("expected exit 3, got %d", res.code)
	}
	r.printDetail("exit %d", res.code)
	return nil
}

func stepTaskErrorStop(r *Runner, ctx *DemoContext) error {
	res, err := r.session([]string{"--interactive"}, []exchange{
		{waitFor: helpHint, send: "fault task"},
		{waitFor: askHint, send: "stop"},
	}, true)
	if err != nil {
		return err
	}
	if res.code != 4 {
		return fmt.Errorf("expected exit 4, got %d", res.code)
	}
	for _, want := range []string{
		"failed with 3 error(s)",
		"1. fs.PathError",
		"2. fmt.wrapError",
		"3. strconv.NumError",
	} {
		if !strings.Contains(res.stdout, want) {
			return fmt.Errorf("dialog is missing %q:\n%s", want, res.stdout)
		}
	}
	if n := strings.Count(res.stdout, "== Background task failed =="); n != 1 {
		return fmt.Errorf("expected one dialog for the aggregate, saw %d", n)
	}
	r.printDetail("one dialog, three causes, exit %d", res.code)
	return nil
}

// Act III: Fatal Errors

func killed(code int) bool {
	return code == exitKilled || code == 134
}

func stepThreadErrorAcknowledged(r *Runner, ctx *DemoContext) error {
	res, err := r.session([]string{"--interactive"}, []exchange{
		{waitFor: helpHint, send: "fault thread"},
		{waitFor: ackHint, send: ""},
	}, true)
	if err != nil {
		return err
	}
	if !killed(res.code) {
		return fmt.Errorf("expected the process to be killed, got exit %d", res.code)
	}
	if !strings.Contains(res.stdout, "A fatal error occurred in renderer") {
		return fmt.Errorf("fatal dialog not shown:\n%s", res.stdout)
	}
	if strings.Contains(res.stderr, "session ended") {
		return fmt.Errorf("cleanup ran after a fatal error")
	}
	r.printDetail("killed after acknowledgement (status %d)", res.code)
	return nil
}

func stepThreadErrorTimeout(r *Runner, ctx *DemoContext) error {
	timeout := time.Second
	res, err := r.session([]string{"--interactive", "--notify-timeout", timeout.String()}, []exchange{
		{waitFor: helpHint, send: "fault thread"},
	}, true)
	if err != nil {
		return err
	}
	if !killed(res.code) {
		return fmt.Errorf("expected the process to be killed, got exit %d", res.code)
	}
	if res.duration < timeout {
		return fmt.Errorf("killed after %s, before the %s notification window", res.duration, timeout)
	}
	if !strings.Contains(res.stderr, "notification deadline exceeded") {
		return fmt.Errorf("deadline not logged:\n%s", res.stderr)
	}
	r.printDetail("killed %s after start with nobody answering", res.duration.Round(100*time.Millisecond))
	return nil
}

func stepNoTerminalFailsOpen(r *Runner, ctx *DemoContext) error {
	res, err := r.session([]string{"--no-prompt"}, []exchange{
		{waitFor: helpHint, send: "fault ui"},
		{send: "fault task"},
		{waitFor: `"outcome":"continue"`, count: 2, stderr: true, send: "quit"},
	}, false)
	if err != nil {
		return err
	}
	if res.code != 0 {
		return fmt.Errorf("expected exit 0, got %d", res.code)
	}
	if strings.Contains(res.stdout, "==") {
		return fmt.Errorf("a dialog was drawn without a terminal:\n%s", res.stdout)
	}
	r.printDetail("both errors logged as continue, exit 0")
	return nil
}

// Act IV: Picking Up Where We Left Off

func stepFlipCard(r *Runner, ctx *DemoContext) error {
	res, err := r.session(nil, []exchange{
		{waitFor: "Found 2 deck(s)", send: "open poker"},
		{waitFor: "Opened poker", send: "flip 2"},
		{waitFor: "is now face up", send: "quit"},
	}, false)
	if err != nil {
		return err
	}
	if res.code != 0 {
		return fmt.Errorf("expected exit 0, got %d", res.code)
	}
	if !strings.Contains(res.stdout, "2. "+ctx.FlipCard+" is now face up") {
		return fmt.Errorf("expected %s to be flipped:\n%s", ctx.FlipCard, res.stdout)
	}
	r.printDetail("%s flipped", ctx.FlipCard)
	return nil
}

func stepFaceStatePersisted(r *Runner, ctx *DemoContext) error {
	m, raw, err := r.cardshell("decks", "show", "poker")
	if err != nil {
		return err
	}
	if err := r.mustSuccess(m, raw); err != nil {
		return err
	}
	if up := getNum(m, "data", "face_up"); up != 1 {
		return fmt.Errorf("expected 1 card face up, got %d", up)
	}
	cards, _ := get(m, "data", "cards").([]any)
	for _, c := range cards {
		cm, _ := c.(map[string]any)
		if get(cm, "face_up") == true {
			r.printDetail("%s is still face up", getStr(cm, "name"))
		}
	}
	return nil
}
