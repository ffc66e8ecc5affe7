package rename

import (
	"context"
	"errors"
	"fmt"

	"github.com/autorename/autorename/internal/database"
	"github.com/autorename/autorename/internal/logger"
)

// ErrNoFormatConfigured is returned when the user never set a rename format.
var ErrNoFormatConfigured = errors.New("no rename format configured")

// FallbackName is used when neither the new nor the original name has anything
// left after sanitizing.
const FallbackName = "unnamed"

// Settings is the stored configuration a rename reads.
type Settings struct {
	Format    string
	HasFormat bool
	Prefix    string
	Suffix    string
}

// Options are the values that do not come from the user.
type Options struct {
	Quality string
	Audio   string
	// ExtractEpisode fills {season} and {episode} from the original name.
	ExtractEpisode bool
}

// Build derives the final filename from originalName. It has no side effects.
func Build(originalName string, s Settings, opts Options) (string, error) {
	if !s.HasFormat {
		return "", ErrNoFormatConfigured
	}

	stem, ext := SplitName(originalName)

	var ep Episode
	if opts.ExtractEpisode {
		ep = ExtractEpisode(stem)
	}

	substituted := Expand(s.Format, map[string]string{
		"season":  ep.Season,
		"episode": ep.Episode,
		"title":   stem,
		"quality": opts.Quality,
		"audio":   opts.Audio,
	})

	newStem := sanitizeStem(s.Prefix + substituted + s.Suffix)
	if newStem == "" {
		// tokens with nothing to fill them, e.g. {season} on "notes"
		newStem = sanitizeStem(stem)
	}
	if name := newStem + clean(ext); name != "" {
		return name, nil
	}
	return FallbackName, nil
}

// Result is what the transport needs to deliver a renamed file.
type Result struct {
	FileName   string
	Caption    string
	HasCaption bool
	Thumbnail  *database.Thumbnail
}

// Store is the slice of persistence a rename touches.
type Store interface {
	GetFormat(ctx context.Context, userID int64) (string, bool, error)
	GetAffix(ctx context.Context, userID int64, kind database.AffixKind) (string, bool, error)
	GetCaption(ctx context.Context, userID int64) (string, bool, error)
	GetThumbnail(ctx context.Context, userID int64) (*database.Thumbnail, error)
	IncrementRenameCount(ctx context.Context, userID int64) error
}

// Pipeline renames files against a user's stored configuration.
type Pipeline struct {
	store Store
	opts  Options
}

func NewPipeline(store Store, opts Options) *Pipeline {
	return &Pipeline{store: store, opts: opts}
}

// Rename reads the user's settings, builds the new name and counts the rename.
// The counter is only touched once everything else has succeeded.
func (p *Pipeline) Rename(ctx context.Context, userID int64, originalName string) (*Result, error) {
	format, ok, err := p.store.GetFormat(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load format: %w", err)
	}
	if !ok {
		return nil, ErrNoFormatConfigured
	}

	prefix, _, err := p.store.GetAffix(ctx, userID, database.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to load prefix: %w", err)
	}
	suffix, _, err := p.store.GetAffix(ctx, userID, database.Suffix)
	if err != nil {
		return nil, fmt.Errorf("failed to load suffix: %w", err)
	}

	name, err := Build(originalName, Settings{
		Format:    format,
		HasFormat: true,
		Prefix:    prefix,
		Suffix:    suffix,
	}, p.opts)
	if err != nil {
		return nil, err
	}

	caption, hasCaption, err := p.store.GetCaption(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load caption: %w", err)
	}
	thumb, err := p.store.GetThumbnail(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thumbnail: %w", err)
	}

	if err := p.store.IncrementRenameCount(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to count rename: %w", err)
	}

	logger.Debug("File renamed", map[string]interface{}{
		"user_id":  userID,
		"original": originalName,
		"renamed":  name,
	})

	return &Result{
		FileName:   name,
		Caption:    caption,
		HasCaption: hasCaption,
		Thumbnail:  thumb,
	}, nil
}
