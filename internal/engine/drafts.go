package engine

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/voxreport/voxreport/internal/errors"
	"github.com/voxreport/voxreport/internal/models"
)

// titlePatterns are tried in order against generated report text. Labeled
// fields win; otherwise a reasonably sized first line serves as the title.
var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)titre\s*[:=]\s*([^\n\r]+)`),
	regexp.MustCompile(`(?i)title\s*[:=]\s*([^\n\r]+)`),
	regexp.MustCompile(`(?i)client\s*[:=]\s*([^\n\r]+)`),
	regexp.MustCompile(`^([^\n\r]{10,80})`),
}

// extractTitle pulls a display title out of generated report content.
// Returns "" when nothing usable is found.
func extractTitle(content string) string {
	for _, pattern := range titlePatterns {
		match := pattern.FindStringSubmatch(content)
		if match == nil {
			continue
		}

		if title := strings.Trim(match[1], "#-*= \t"); title != "" {
			return title
		}
	}

	return ""
}

// CreateDraft registers a new in-progress report. Recordings and uploads
// start in the generating state until a transcript arrives.
func (e *Engine) CreateDraft(ctx context.Context, title string, source models.SourceType, sourceInfo string) (models.Draft, error) {
	userID, err := e.userID()
	if err != nil {
		return models.Draft{}, err
	}

	if strings.TrimSpace(title) == "" {
		return models.Draft{}, apperrors.ErrEmptyTitle
	}

	draft := models.Draft{
		ID:         "draft_" + uuid.NewString(),
		Title:      strings.TrimSpace(title),
		CreatedAt:  time.Now().UTC(),
		SourceType: source,
		Status:     models.DraftGenerating,
		SourceInfo: sourceInfo,
	}

	err = e.mutate(func(snap *snapshot) error {
		snap.Drafts = append([]models.Draft{draft}, snap.Drafts...)
		return nil
	})
	if err != nil {
		return models.Draft{}, err
	}

	e.push("draft creation", func(ctx context.Context) error {
		return e.gateway.InsertDraft(ctx, userID, draft)
	})

	return draft, nil
}

// AttachGenerated stores the generated report text on a draft and flips
// it to ready. A non-empty title replaces the placeholder one; otherwise
// a title is extracted from the content itself, keeping the placeholder
// only when nothing usable is found.
func (e *Engine) AttachGenerated(ctx context.Context, draftID, generated, title string) (models.Draft, error) {
	userID, err := e.userID()
	if err != nil {
		return models.Draft{}, err
	}

	if strings.TrimSpace(generated) == "" {
		return models.Draft{}, apperrors.ErrEmptyContent
	}

	var updated models.Draft

	err = e.mutate(func(snap *snapshot) error {
		d := findDraft(snap, draftID)
		if d == nil {
			return apperrors.ErrDraftNotFound
		}

		d.GeneratedReport = generated
		d.Status = models.DraftReady

		if t := strings.TrimSpace(title); t != "" {
			d.Title = t
		} else if t := extractTitle(generated); t != "" {
			d.Title = t
		}

		updated = *d

		return nil
	})
	if err != nil {
		return models.Draft{}, err
	}

	e.push("draft update", func(ctx context.Context) error {
		return e.gateway.UpdateDraft(ctx, userID, updated)
	})

	return updated, nil
}

// SetDraftStatus moves a draft between lifecycle states.
func (e *Engine) SetDraftStatus(ctx context.Context, draftID string, status models.DraftStatus) error {
	userID, err := e.userID()
	if err != nil {
		return err
	}

	var updated models.Draft

	err = e.mutate(func(snap *snapshot) error {
		d := findDraft(snap, draftID)
		if d == nil {
			return apperrors.ErrDraftNotFound
		}

		d.Status = status
		updated = *d

		return nil
	})
	if err != nil {
		return err
	}

	e.push("draft update", func(ctx context.Context) error {
		return e.gateway.UpdateDraft(ctx, userID, updated)
	})

	return nil
}

// EditDraft rewrites a draft's title and generated text, marking it as
// user-modified.
func (e *Engine) EditDraft(ctx context.Context, draftID, title, generated string) (models.Draft, error) {
	userID, err := e.userID()
	if err != nil {
		return models.Draft{}, err
	}

	if strings.TrimSpace(title) == "" {
		return models.Draft{}, apperrors.ErrEmptyTitle
	}

	var updated models.Draft

	err = e.mutate(func(snap *snapshot) error {
		d := findDraft(snap, draftID)
		if d == nil {
			return apperrors.ErrDraftNotFound
		}

		d.Title = strings.TrimSpace(title)
		d.GeneratedReport = generated
		d.IsModified = true
		updated = *d

		return nil
	})
	if err != nil {
		return models.Draft{}, err
	}

	e.push("draft update", func(ctx context.Context) error {
		return e.gateway.UpdateDraft(ctx, userID, updated)
	})

	return updated, nil
}

// DeleteDraft removes a draft locally and remotely.
func (e *Engine) DeleteDraft(ctx context.Context, draftID string) error {
	if _, err := e.userID(); err != nil {
		return err
	}

	err := e.mutate(func(snap *snapshot) error {
		kept := snap.Drafts[:0:0]

		for _, d := range snap.Drafts {
			if d.ID != draftID {
				kept = append(kept, d)
			}
		}

		if len(kept) == len(snap.Drafts) {
			return apperrors.ErrDraftNotFound
		}

		snap.Drafts = kept

		return nil
	})
	if err != nil {
		return err
	}

	e.push("draft deletion", func(ctx context.Context) error {
		return e.gateway.DeleteDraft(ctx, draftID)
	})

	return nil
}

// Draft looks a draft up by id.
func (e *Engine) Draft(draftID string) (models.Draft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, d := range e.snap.Drafts {
		if d.ID == draftID {
			return d, nil
		}
	}

	return models.Draft{}, apperrors.ErrDraftNotFound
}

// Drafts returns the drafts, newest first.
func (e *Engine) Drafts() []models.Draft {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]models.Draft(nil), e.snap.Drafts...)
}

func findDraft(snap *snapshot, draftID string) *models.Draft {
	for i := range snap.Drafts {
		if snap.Drafts[i].ID == draftID {
			return &snap.Drafts[i]
		}
	}

	return nil
}
