// Package extractor turns dictionary entries into Anki card files.
//
// An Extractor knows how to query one dictionary. A Generator drives it and
// writes the note type (front and back templates, styling) and the cards
// into an output directory that can be imported into Anki.
package extractor

import (
	"context"
	"errors"
	"fmt"
)

// ErrWordNotFound is returned by Extractor.Card when the dictionary has no
// entry for the word.
var ErrWordNotFound = errors.New("word not found")

// ExtractError is returned when a page was fetched but its fields could not
// be assembled.
type ExtractError struct {
	Word string
	Err  error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("can't extract fields of %q: %v", e.Word, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Card is one note: the headword the dictionary resolved the query to, and
// the field values in template order (front, back).
type Card struct {
	Word   string
	Fields []string
}

// Extractor queries a dictionary.
type Extractor interface {
	// Name identifies the extractor on the command line and in the output path.
	Name() string
	FrontTemplate() string
	BackTemplate() string
	// Styling returns the note type CSS. It may download assets into the
	// media directory.
	Styling(ctx context.Context) (string, error)
	// Card looks up word. Card must be safe for concurrent use.
	Card(ctx context.Context, word string) (Card, error)
}

const (
	DefaultFrontTemplate = "{{正面}}"
	DefaultBackTemplate  = "{{FrontSide}}\n<hr id=answer>\n{{背面}}"
	DefaultStyling       = `.card {
 font-family: arial;
 font-size: 20px;
 text-align: left;
 color: black;
 background-color: white;
}
`
)

// Defaults provides the stock Anki "Basic" templates. Embed it and override
// what differs.
type Defaults struct{}

func (Defaults) FrontTemplate() string { return DefaultFrontTemplate }
func (Defaults) BackTemplate() string  { return DefaultBackTemplate }

func (Defaults) Styling(context.Context) (string, error) { return DefaultStyling, nil }
